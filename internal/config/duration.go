package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/baxromumarov/job-harvester/internal/crawl"
)

// Duration wraps time.Duration so YAML can carry "30s" style values or plain
// seconds.
type Duration struct {
	time.Duration
}

func DurationFrom(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		if v == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
	case int:
		d.Duration = time.Duration(v) * time.Second
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
	case nil:
		d.Duration = 0
	default:
		return fmt.Errorf("unsupported duration type %T", raw)
	}
	return nil
}

// Budget is the record target. Finite values have a floor of one; .inf,
// "unlimited" and infinity mean no limit. The zero value is unset and is
// clamped to one by Validate.
type Budget int

// Unlimited is the Budget that never runs out.
const Unlimited Budget = -1

func (b Budget) Unbounded() bool {
	return b < 0
}

// Limit converts b to the record target the crawl state expects.
func (b Budget) Limit() int {
	if b.Unbounded() {
		return crawl.Unbounded
	}
	return max(1, int(b))
}

func (b Budget) String() string {
	if b.Unbounded() {
		return "unlimited"
	}
	return strconv.Itoa(int(b))
}

func (b Budget) MarshalYAML() (any, error) {
	if b.Unbounded() {
		return "unlimited", nil
	}
	return int(b), nil
}

func (b *Budget) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		return nil
	}
	return b.Set(value.Value)
}

// Set parses s, so Budget also works as a command line flag value.
func (b *Budget) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "unlimited", "inf", "+inf", ".inf", "+.inf", "infinity":
		*b = Unlimited
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return fmt.Errorf("invalid target count %q", s)
	}
	switch {
	case f >= math.MaxInt:
		*b = Unlimited
	case f < 1:
		*b = 1
	default:
		*b = Budget(int(f))
	}
	return nil
}

func (b *Budget) Type() string {
	return "budget"
}
