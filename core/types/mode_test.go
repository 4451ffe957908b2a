package types_test

import (
	"testing"

	"arbor/core/types"
)

func TestEncodeModeLayout(t *testing.T) {
	m := types.EncodeMode(types.CallTypeBatch, types.ExecTypeTry)
	if m[0] != 0x01 || m[1] != 0x01 {
		t.Fatalf("unexpected leading bytes: %x", m[:2])
	}
	for i := 2; i < 32; i++ {
		if m[i] != 0 {
			t.Fatalf("byte %d not zero", i)
		}
	}
	if m.CallType() != types.CallTypeBatch {
		t.Errorf("CallType = %#x", m.CallType())
	}
	if m.ExecType() != types.ExecTypeTry {
		t.Errorf("ExecType = %#x", m.ExecType())
	}
}

func TestModeRegions(t *testing.T) {
	var m types.ExecMode
	copy(m[6:10], []byte{0xde, 0xad, 0xbe, 0xef})
	m[10] = 0x42
	m[31] = 0x99

	if got := m.Selector(); got != [4]byte{0xde, 0xad, 0xbe, 0xef} {
		t.Errorf("Selector = %x", got)
	}
	p := m.Payload()
	if p[0] != 0x42 || p[21] != 0x99 {
		t.Errorf("Payload = %x", p)
	}
}

func TestSupportedCombinations(t *testing.T) {
	for _, ct := range []types.CallType{types.CallTypeSingle, types.CallTypeBatch, types.CallTypeDelegate} {
		for _, et := range []types.ExecType{types.ExecTypeDefault, types.ExecTypeTry} {
			if !types.EncodeMode(ct, et).Supported() {
				t.Errorf("mode (%#x, %#x) should be supported", ct, et)
			}
		}
	}
	if types.EncodeMode(types.CallType(0x02), types.ExecTypeDefault).Supported() {
		t.Error("unknown call type reported supported")
	}
	if types.EncodeMode(types.CallTypeSingle, types.ExecType(0xff)).Supported() {
		t.Error("unknown exec type reported supported")
	}
}

func TestSelectorRegionDoesNotAffectSupport(t *testing.T) {
	m := types.EncodeMode(types.CallTypeSingle, types.ExecTypeDefault)
	copy(m[6:10], []byte{1, 2, 3, 4})
	m[20] = 0xff
	if !m.Supported() {
		t.Error("selector/payload regions must not affect capability")
	}
}

func TestKnownModuleType(t *testing.T) {
	known := []types.ModuleType{
		types.ModuleTypeValidator,
		types.ModuleTypeExecutor,
		types.ModuleTypeFallback,
		types.ModuleTypeHook,
		types.ModuleTypePreValidationHookSig,
		types.ModuleTypePreValidationHookOp,
	}
	for _, mt := range known {
		if !types.KnownModuleType(mt) {
			t.Errorf("%s should be known", mt)
		}
	}
	for _, mt := range []types.ModuleType{0, 5, 6, 7, 10, 255} {
		if types.KnownModuleType(mt) {
			t.Errorf("type %d should be unknown", mt)
		}
	}
}
