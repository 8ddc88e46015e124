package sipl

import "testing"

func TestNewPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"foo/bar", "foo/bar"},
		{"/foo//bar/", "foo/bar"},
		{`foo\bar`, "foo/bar"},
		{"./foo/./bar", "foo/bar"},
	}
	for _, c := range cases {
		p, err := NewPath(c.in)
		if err != nil {
			t.Fatalf("NewPath(%q): %v", c.in, err)
		}
		if p.String() != c.want {
			t.Errorf("NewPath(%q) = %q, want %q", c.in, p.String(), c.want)
		}
	}

	for _, bad := range []string{"", "/", "../etc", "a/../../b"} {
		if _, err := NewPath(bad); err == nil {
			t.Errorf("NewPath(%q) expected error", bad)
		}
	}
}
