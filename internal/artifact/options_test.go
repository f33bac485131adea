package artifact

import "testing"

func TestVariantKey_Original(t *testing.T) {
	if got := VariantKey(nil); got != OriginalKey {
		t.Errorf("nil 选项: %q", got)
	}
	if got := VariantKey(Options{}); got != OriginalKey {
		t.Errorf("空选项: %q", got)
	}
}

func TestVariantKey_Deterministic(t *testing.T) {
	a := VariantKey(Options{"w": "100", "h": "200"})
	b := VariantKey(Options{"h": "200", "w": "100"})
	if a != b {
		t.Errorf("键应与选项顺序无关: %q vs %q", a, b)
	}
	if a == OriginalKey || len(a) != 16 {
		t.Errorf("变体键格式: %q", a)
	}
}

func TestVariantKey_Distinct(t *testing.T) {
	a := VariantKey(Options{"w": "100"})
	b := VariantKey(Options{"w": "101"})
	if a == b {
		t.Error("不同选项应产生不同键")
	}
}
