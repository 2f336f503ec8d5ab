package diag

import (
	"testing"

	"cinder/internal/source"
)

func TestBagLimit(t *testing.T) {
	bag := NewBag(2)
	if !bag.Add(Diagnostic{Severity: SevError, Code: LowerAggregateTooLarge}) {
		t.Fatal("first add should succeed")
	}
	if !bag.Add(Diagnostic{Severity: SevWarning, Code: EmitMissingEntryPoint}) {
		t.Fatal("second add should succeed")
	}
	if bag.Add(Diagnostic{Severity: SevError, Code: UnknownCode}) {
		t.Error("third add should be rejected by the limit")
	}
	if !bag.HasErrors() {
		t.Error("bag should report errors")
	}
}

func TestBagMergeGrowsPastLimit(t *testing.T) {
	bag := NewBag(1)
	bag.Add(Diagnostic{Severity: SevWarning, Code: EmitInfo})

	other := NewBag(2)
	other.Add(Diagnostic{Severity: SevError, Code: LowerAggregateTooLarge})
	bag.Merge(other)

	if bag.Len() != 2 {
		t.Fatalf("merge dropped diagnostics: len = %d, want 2", bag.Len())
	}
	if !bag.HasErrors() {
		t.Error("merged-in error must survive a full bag")
	}
}

func TestBagSortDeterministic(t *testing.T) {
	bag := NewBag(10)
	bag.Add(Diagnostic{Severity: SevWarning, Code: EmitInfo, Primary: source.Span{File: 1, Start: 50}})
	bag.Add(Diagnostic{Severity: SevError, Code: LowerImmediateOverflow, Primary: source.Span{File: 0, Start: 10}})
	bag.Add(Diagnostic{Severity: SevError, Code: LowerAggregateTooLarge, Primary: source.Span{File: 0, Start: 10}})
	bag.Sort()

	items := bag.Items()
	if items[0].Primary.File != 0 {
		t.Errorf("expected file 0 first, got file %d", items[0].Primary.File)
	}
	// Same span: lower code first.
	if items[0].Code != LowerAggregateTooLarge {
		t.Errorf("expected %s first, got %s", LowerAggregateTooLarge, items[0].Code)
	}
}

func TestBagDedup(t *testing.T) {
	bag := NewBag(10)
	d := Diagnostic{Severity: SevError, Code: LowerAggregateTooLarge, Primary: source.Span{File: 1, Start: 5, End: 9}}
	bag.Add(d)
	bag.Add(d)
	bag.Dedup()
	if bag.Len() != 1 {
		t.Errorf("expected 1 diagnostic after dedup, got %d", bag.Len())
	}
}
