package slug

import "testing"

func TestSlugify_Scenarios(t *testing.T) {
	cases := map[string]string{
		"Hello, World! 2024":        "hello-world-2024",
		"   ":                       "untitled",
		"":                          "untitled",
		"Alpha Summary":             "alpha-summary",
		"  --leading separators":    "leading-separators",
		"trailing dots...":          "trailing-dots",
		"snake_case.and-kebab":      "snake-case-and-kebab",
		"Ünïcödé chars dropped":     "ncd-chars-dropped",
		"multiple   spaces -_. mix": "multiple-spaces-mix",
		"!!!":                       "untitled",
		"MiXeD CaSe 42":             "mixed-case-42",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	inputs := []string{
		"Hello, World! 2024",
		"   ",
		"a.b.c",
		"--x--",
		"日本語 title",
		"Already-a-slug",
		"tab\tseparated",
	}
	for _, in := range inputs {
		once := Slugify(in)
		if twice := Slugify(once); twice != once {
			t.Errorf("Slugify not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestIsSlug(t *testing.T) {
	if !IsSlug("alpha-beta") {
		t.Error("alpha-beta should be a slug")
	}
	if IsSlug("Alpha Beta") {
		t.Error("Alpha Beta should not be a slug")
	}
	if IsSlug("") {
		t.Error("empty string should not be a slug")
	}
}
