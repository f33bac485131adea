package utils

import "testing"

func TestCoalesceString(t *testing.T) {
	if got := CoalesceString("", "a", "b"); got != "a" {
		t.Errorf("CoalesceString: %q", got)
	}
	if got := CoalesceString("", ""); got != "" {
		t.Errorf("CoalesceString 全空: %q", got)
	}
}

func TestDefaultInt(t *testing.T) {
	if got := DefaultInt(0, 7); got != 7 {
		t.Errorf("DefaultInt: %d", got)
	}
	if got := DefaultInt(3, 7); got != 3 {
		t.Errorf("DefaultInt: %d", got)
	}
}

func TestCloneStringMap(t *testing.T) {
	if CloneStringMap(nil) != nil {
		t.Error("nil 应返回 nil")
	}
	src := map[string]string{"k": "v"}
	dst := CloneStringMap(src)
	dst["k"] = "changed"
	if src["k"] != "v" {
		t.Error("应为拷贝而非引用")
	}
}
