package dma

import "testing"

func TestModelMemoryByteRoundTrip(t *testing.T) {
	t.Parallel()

	memory := new(ModelMemory)
	memory.Init(64, 1, 1, nil)

	memory.WriteBytes(8, []uint8{1, 2, 3, 4})
	bytes := memory.ReadBytes(8, 4)
	if bytes[0] != 1 || bytes[3] != 4 {
		t.Fatalf("expected byte round trip, got %v", bytes)
	}

	memory.WriteWord(16, 0xA1B2C3D4)
	if got := memory.ReadWord(16); got != 0xA1B2C3D4 {
		t.Fatalf("expected word round trip, got 0x%08X", got)
	}
	if got := memory.ReadBytes(16, 1)[0]; got != 0xD4 {
		t.Fatalf("expected little-endian layout, got 0x%02X", got)
	}
}

func TestModelMemoryDirectAccessOutOfRangePanics(t *testing.T) {
	t.Parallel()

	memory := new(ModelMemory)
	memory.Init(64, 1, 1, nil)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out-of-range staging access")
		}
	}()
	memory.WriteBytes(62, []uint8{1, 2, 3, 4})
}

func TestModelMemoryBusFaultOnRangeOverrun(t *testing.T) {
	t.Parallel()

	memory := new(ModelMemory)
	memory.Init(8, 1, 1, nil)

	if !memory.RequestRead(6, 4, 1) {
		t.Fatalf("expected address phase acceptance with latency 1")
	}

	for beat := 0; beat < 2; beat++ {
		if _, fault := memory.ReadBeat(); fault {
			t.Fatalf("expected in-range beat %d to succeed", beat)
		}
	}
	if _, fault := memory.ReadBeat(); !fault {
		t.Fatalf("expected bus fault once the burst runs off the end")
	}
}
