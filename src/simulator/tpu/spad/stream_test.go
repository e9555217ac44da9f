package spad

import "testing"

func TestStreamerProducesOneElementPerCycle(t *testing.T) {
	t.Parallel()

	buffer := new(Buffer)
	buffer.Init("activation", 4, 8, nil)
	for address := int64(0); address < 8; address++ {
		buffer.Write(address, int32(address*10))
	}
	buffer.Swap()

	streamer := new(Streamer)
	streamer.Init(buffer, nil)
	streamer.StartStream(2, 5)

	if streamer.Complete() {
		t.Fatalf("expected completion flag clear after start")
	}

	for i := int64(0); i < 5; i++ {
		buffer.BeginCycle()
		value, valid := streamer.Tick()
		if !valid {
			t.Fatalf("expected valid element on cycle %d", i)
		}
		if value != int32((2+i)*10) {
			t.Fatalf("expected %d, got %d", (2+i)*10, value)
		}
	}

	if !streamer.Complete() {
		t.Fatalf("expected completion flag after count elements")
	}
	if streamer.Active() {
		t.Fatalf("expected streamer idle after completion")
	}
	if _, valid := streamer.Tick(); valid {
		t.Fatalf("expected no element after completion")
	}
}

func TestStreamerRestartClearsCompletion(t *testing.T) {
	t.Parallel()

	buffer := new(Buffer)
	buffer.Init("activation", 2, 4, nil)

	streamer := new(Streamer)
	streamer.Init(buffer, nil)

	streamer.StartStream(0, 1)
	streamer.Tick()
	if !streamer.Complete() {
		t.Fatalf("expected completion after single element")
	}

	streamer.StartStream(0, 2)
	if streamer.Complete() {
		t.Fatalf("expected restart to clear completion flag")
	}
	if !streamer.Active() {
		t.Fatalf("expected streamer active after restart")
	}
}

func TestStreamerZeroCountCompletesImmediately(t *testing.T) {
	t.Parallel()

	buffer := new(Buffer)
	buffer.Init("activation", 2, 4, nil)

	streamer := new(Streamer)
	streamer.Init(buffer, nil)
	streamer.StartStream(0, 0)

	if streamer.Active() {
		t.Fatalf("expected zero-count stream to stay idle")
	}
	if !streamer.Complete() {
		t.Fatalf("expected zero-count stream to complete immediately")
	}
}
