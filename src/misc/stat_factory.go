package misc

import (
	"fmt"
	"sort"
)

// StatFactory collects named monotonic counters for one component and renders
// them as "component_key: value" lines for the simulation log.
type StatFactory struct {
	name  string
	stats map[string]int64
}

func (this *StatFactory) Init(name string) {
	this.name = name
	this.stats = make(map[string]int64)
}

func (this *StatFactory) Increment(key string, delta int64) {
	this.stats[key] += delta
}

func (this *StatFactory) Set(key string, value int64) {
	this.stats[key] = value
}

func (this *StatFactory) Value(key string) int64 {
	return this.stats[key]
}

func (this *StatFactory) Keys() []string {
	keys := make([]string, 0, len(this.stats))
	for key := range this.stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (this *StatFactory) ToLines() []string {
	lines := make([]string, 0, len(this.stats))
	for _, key := range this.Keys() {
		lines = append(lines, fmt.Sprintf("%s_%s: %d", this.name, key, this.stats[key]))
	}
	return lines
}
