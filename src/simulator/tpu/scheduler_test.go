package tpu

import (
	"testing"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/mxu"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/spad"
)

type schedulerHarness struct {
	weight     *spad.Buffer
	activation *spad.Buffer
	output     *spad.OutputStore
	streamer   *spad.Streamer
	array      *mxu.Array
	stats      *misc.StatFactory
	scheduler  *Scheduler
}

func newSchedulerHarness(t *testing.T, array_dim int64, pipelined bool, shift int64) *schedulerHarness {
	t.Helper()

	harness := new(schedulerHarness)
	harness.stats = new(misc.StatFactory)
	harness.stats.Init("Sched")

	harness.weight = new(spad.Buffer)
	harness.weight.Init("weight", 8, 1024, harness.stats)
	harness.activation = new(spad.Buffer)
	harness.activation.Init("activation", 8, 1024, harness.stats)
	harness.output = new(spad.OutputStore)
	harness.output.Init("output", 8192, harness.stats)
	harness.streamer = new(spad.Streamer)
	harness.streamer.Init(harness.activation, harness.stats)
	harness.array = mxu.NewArray(array_dim)

	harness.scheduler = new(Scheduler)
	harness.scheduler.Init(harness.array, harness.weight, harness.activation, harness.streamer,
		harness.output, pipelined, shift, harness.stats)
	return harness
}

// publishOperands fills both buffer generations with the same images, the way
// a host primes the double buffer before a sweep, so every tile parity
// observes identical operands.
func (this *schedulerHarness) publishOperands(weights []int32, activations []int32) {
	for address, value := range weights {
		this.weight.Write(int64(address), value)
	}
	for address, value := range activations {
		this.activation.Write(int64(address), value)
	}
	this.weight.Swap()
	this.activation.Swap()
	for address, value := range weights {
		this.weight.Write(int64(address), value)
	}
	for address, value := range activations {
		this.activation.Write(int64(address), value)
	}
}

func newMatmulJob(array_dim int64, k uint8, m_sel uint8, n_sel uint8) *TileJob {
	descriptor := new(Descriptor)
	descriptor.Init()
	descriptor.Opcode = OpcodeMatmul
	descriptor.KTileLen = k
	descriptor.MSel = m_sel
	descriptor.NSel = n_sel

	job := new(TileJob)
	job.Init(descriptor, DeriveGeometry(descriptor, array_dim))
	return job
}

// runJob starts the job and ticks until the done pulse fires, returning the
// number of ticks spent.
func (this *schedulerHarness) runJob(t *testing.T, job *TileJob, max_ticks int) int {
	t.Helper()

	if !this.scheduler.Start(job) {
		t.Fatalf("scheduler rejected job start")
	}
	for tick := 1; tick <= max_ticks; tick++ {
		this.weight.BeginCycle()
		this.activation.BeginCycle()
		this.scheduler.Tick()
		if this.scheduler.ConsumeDone() {
			return tick
		}
	}
	t.Fatalf("job did not complete within %d ticks", max_ticks)
	return 0
}

func TestSingleTileCycleCounts(t *testing.T) {
	t.Parallel()

	// K past the physical array depth does not stretch any phase
	harness := newSchedulerHarness(t, 8, false, 0)
	harness.runJob(t, newMatmulJob(8, 16, 0, 0), 64)

	if loads := harness.stats.Value("load_cycles"); loads != 8 {
		t.Fatalf("load cycles: got %d, want 8", loads)
	}
	if computes := harness.stats.Value("compute_cycles"); computes != 15 {
		t.Fatalf("compute cycles: got %d, want 15", computes)
	}
	if drains := harness.stats.Value("drain_cycles"); drains != 7 {
		t.Fatalf("drain cycles: got %d, want 7", drains)
	}
	if writes := harness.output.Writes(); writes != 64 {
		t.Fatalf("output element writes: got %d, want 64", writes)
	}
	if !harness.scheduler.DoneLatch() {
		t.Fatalf("done latch not set after completion")
	}
}

func TestLargeArraySingleTileCycleCounts(t *testing.T) {
	t.Parallel()

	harness := newSchedulerHarness(t, 64, false, 0)
	ticks := harness.runJob(t, newMatmulJob(64, 64, 0, 0), 300)

	// one job entry tick, then 64 + 127 + 63 phase cycles
	if ticks != 255 {
		t.Fatalf("tile latency: got %d ticks, want 255", ticks)
	}
	if loads := harness.stats.Value("load_cycles"); loads != 64 {
		t.Fatalf("load cycles: got %d, want 64", loads)
	}
	if computes := harness.stats.Value("compute_cycles"); computes != 127 {
		t.Fatalf("compute cycles: got %d, want 127", computes)
	}
	if drains := harness.stats.Value("drain_cycles"); drains != 63 {
		t.Fatalf("drain cycles: got %d, want 63", drains)
	}
	if writes := harness.output.Writes(); writes != 4096 {
		t.Fatalf("output element writes: got %d, want 4096", writes)
	}
}

func TestFullSweepCycleAndWriteCounts(t *testing.T) {
	t.Parallel()

	// 64x64 result at depth 64 on an 8x8 array: 64 tiles, 30 phase cycles each
	harness := newSchedulerHarness(t, 8, false, 0)
	swap_base := harness.weight.SwapCount()

	harness.runJob(t, newMatmulJob(8, 64, 7, 7), 4096)

	if loads := harness.stats.Value("load_cycles"); loads != 64*8 {
		t.Fatalf("load cycles: got %d, want %d", loads, 64*8)
	}
	if computes := harness.stats.Value("compute_cycles"); computes != 64*15 {
		t.Fatalf("compute cycles: got %d, want %d", computes, 64*15)
	}
	if drains := harness.stats.Value("drain_cycles"); drains != 64*7 {
		t.Fatalf("drain cycles: got %d, want %d", drains, 64*7)
	}
	if writes := harness.output.Writes(); writes != 4096 {
		t.Fatalf("output element writes: got %d, want 4096", writes)
	}
	if swaps := harness.weight.SwapCount() - swap_base; swaps != 64 {
		t.Fatalf("generation swaps: got %d, want 64", swaps)
	}
}

func TestPipelinedDrainTiming(t *testing.T) {
	t.Parallel()

	harness := newSchedulerHarness(t, 8, true, 0)
	harness.runJob(t, newMatmulJob(8, 8, 0, 0), 64)

	if loads := harness.stats.Value("load_cycles"); loads != 8 {
		t.Fatalf("load cycles: got %d, want 8", loads)
	}
	if computes := harness.stats.Value("compute_cycles"); computes != 15 {
		t.Fatalf("compute cycles: got %d, want 15", computes)
	}
	if drains := harness.stats.Value("drain_cycles"); drains != 15 {
		t.Fatalf("pipelined drain cycles: got %d, want 15", drains)
	}
	if writes := harness.output.Writes(); writes != 64 {
		t.Fatalf("output element writes: got %d, want 64", writes)
	}
}

func TestSwapPulsesOnlyAtTileBoundaries(t *testing.T) {
	t.Parallel()

	harness := newSchedulerHarness(t, 8, false, 0)
	swap_base := harness.weight.SwapCount()

	job := newMatmulJob(8, 8, 1, 1)
	if !harness.scheduler.Start(job) {
		t.Fatalf("scheduler rejected job start")
	}

	pulses := 0
	for tick := 0; tick < 256; tick++ {
		pre_state := harness.scheduler.State()
		harness.weight.BeginCycle()
		harness.activation.BeginCycle()
		harness.scheduler.Tick()
		if harness.scheduler.SwapPulse() {
			pulses++
			if pre_state != SchedulerDrain {
				t.Fatalf("swap pulse outside a drain boundary cycle, state %v", pre_state)
			}
		}
		if harness.scheduler.ConsumeDone() {
			break
		}
	}

	if pulses != 4 {
		t.Fatalf("swap pulses: got %d, want 4", pulses)
	}
	if swaps := harness.weight.SwapCount() - swap_base; swaps != 4 {
		t.Fatalf("weight swaps: got %d, want 4", swaps)
	}
	if swaps := harness.activation.SwapCount(); swaps != harness.weight.SwapCount() {
		t.Fatalf("weight and activation swap counts diverge: %d vs %d",
			harness.weight.SwapCount(), swaps)
	}
}

func TestGoldenSingleTileValues(t *testing.T) {
	t.Parallel()

	const n = 4
	harness := newSchedulerHarness(t, n, false, 0)

	weights := make([]int32, n*n)
	for k := 0; k < n; k++ {
		for c := 0; c < n; c++ {
			weights[k*n+c] = int32((k+1)*(c+1) - 3)
		}
	}
	activations := make([]int32, n*n)
	for r := 0; r < n; r++ {
		for k := 0; k < n; k++ {
			activations[r*n+k] = int32(r - k + 2)
		}
	}
	harness.publishOperands(weights, activations)

	harness.runJob(t, newMatmulJob(n, n, 0, 0), 64)

	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			expected := int32(0)
			for k := 0; k < n; k++ {
				expected += activations[r*n+k] * weights[k*n+c]
			}
			if got := harness.output.Read(int64(r*n + c)); got != expected {
				t.Fatalf("output[%d][%d]: got %d, want %d", r, c, got, expected)
			}
		}
	}
}

func TestStreamFeedMatchesDiscreteFeed(t *testing.T) {
	t.Parallel()

	const n = 4
	weights := make([]int32, n*n)
	activations := make([]int32, n*n)
	for i := range weights {
		weights[i] = int32(3*i%11 - 5)
		activations[i] = int32(7*i%13 - 6)
	}

	discrete := newSchedulerHarness(t, n, false, 0)
	discrete.publishOperands(weights, activations)
	discrete_ticks := discrete.runJob(t, newMatmulJob(n, n, 0, 0), 64)

	streamed := newSchedulerHarness(t, n, false, 0)
	streamed.publishOperands(weights, activations)
	stream_job := newMatmulJob(n, n, 0, 0)
	stream_job.Descriptor.DataflowStream = true
	stream_ticks := streamed.runJob(t, stream_job, 64)

	if discrete_ticks != stream_ticks {
		t.Fatalf("stream feed changed timing: %d vs %d ticks", stream_ticks, discrete_ticks)
	}
	for i := int64(0); i < n*n; i++ {
		if discrete.output.Read(i) != streamed.output.Read(i) {
			t.Fatalf("output[%d] diverges between feeds: %d vs %d",
				i, discrete.output.Read(i), streamed.output.Read(i))
		}
	}
	if elements := streamed.stats.Value("stream_elements"); elements != 2*n-1 {
		t.Fatalf("streamed elements: got %d, want %d", elements, 2*n-1)
	}
}

func TestWideAccumulateSaturatingRequant(t *testing.T) {
	t.Parallel()

	const n = 2
	harness := newSchedulerHarness(t, n, false, 3)

	// acc values 1000, -1000, 2000, -2000 before the >>3 requant
	weights := []int32{50, -50, 50, -50}
	activations := []int32{10, 10, 20, 20}
	harness.publishOperands(weights, activations)

	job := newMatmulJob(n, n, 0, 0)
	job.Descriptor.WideAccumulate = true
	harness.runJob(t, job, 32)

	expected := []int32{125, -125, 127, -128}
	for i, want := range expected {
		if got := harness.output.Read(int64(i)); got != want {
			t.Fatalf("output[%d]: got %d, want %d", i, got, want)
		}
	}
}

func TestStartDuringDoneEntersLoadDirectly(t *testing.T) {
	t.Parallel()

	harness := newSchedulerHarness(t, 8, false, 0)
	harness.runJob(t, newSchedulerChainJob(), 64)

	if state := harness.scheduler.State(); state != SchedulerDone {
		t.Fatalf("scheduler state after done pulse: got %v, want DONE", state)
	}
	if !harness.scheduler.Start(newSchedulerChainJob()) {
		t.Fatalf("start rejected during the done window")
	}

	harness.weight.BeginCycle()
	harness.activation.BeginCycle()
	harness.scheduler.Tick()
	if state := harness.scheduler.State(); state != SchedulerLoadWeights {
		t.Fatalf("chained job state: got %v, want LOAD_WEIGHTS", state)
	}
}

func newSchedulerChainJob() *TileJob {
	return newMatmulJob(8, 8, 0, 0)
}

func TestStartRejectedMidJob(t *testing.T) {
	t.Parallel()

	harness := newSchedulerHarness(t, 8, false, 0)
	if !harness.scheduler.Start(newMatmulJob(8, 8, 0, 0)) {
		t.Fatalf("initial start rejected")
	}
	for tick := 0; tick < 5; tick++ {
		harness.weight.BeginCycle()
		harness.activation.BeginCycle()
		harness.scheduler.Tick()
	}
	if harness.scheduler.State() != SchedulerLoadWeights {
		t.Fatalf("expected the job to be loading weights")
	}
	if harness.scheduler.Start(newMatmulJob(8, 8, 0, 0)) {
		t.Fatalf("start accepted while a job is mid-flight")
	}
}
