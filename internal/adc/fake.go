package adc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/sweeney/motor-fader/internal/logic"
)

// Fake is a test double for the sensor chip. Handles obtained from it share
// its state, and every access is serialised so tests may inspect it while a
// controller goroutine owns a handle.
type Fake struct {
	mu sync.Mutex

	// Samples contains scripted conversion results. Each read consumes the
	// next sample; once exhausted the last one repeats.
	Samples []logic.Raw
	index   int

	// Source, if set, supplies conversion results instead of Samples.
	Source func() logic.Raw

	// Failures injected into the next N calls of each operation.
	FailReads     int
	FailEnter     int
	FailExit      int
	FailWindow    int
	ConfigureErr  error
	InjectedError error

	// Recorded interactions.
	Configs     []Config
	Windows     []logic.Window
	Transitions []string
	Reads       int
	continuous  bool
}

// ErrFake is returned by injected failures when InjectedError is unset.
var ErrFake = errors.New("fake adc: injected failure")

// NewFake creates a Fake with the given scripted samples.
func NewFake(samples ...logic.Raw) *Fake {
	return &Fake{Samples: samples}
}

// OneShot returns a fresh one-shot handle.
func (f *Fake) OneShot() OneShot {
	return &fakeOneShot{f: f}
}

// Continuous reports whether the chip is currently free-running.
func (f *Fake) Continuous() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.continuous
}

// LastWindow returns the most recently programmed window.
func (f *Fake) LastWindow() (logic.Window, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Windows) == 0 {
		return logic.Window{}, false
	}
	return f.Windows[len(f.Windows)-1], true
}

// ReadCount returns the number of successful conversions.
func (f *Fake) ReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reads
}

// TransitionLog returns a copy of the recorded mode transitions.
func (f *Fake) TransitionLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Transitions...)
}

// Set runs fn with the fake locked, for changing injected failures while a
// controller goroutine holds a handle.
func (f *Fake) Set(fn func(f *Fake)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// Reset rewinds the scripted samples.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
}

func (f *Fake) injected() error {
	if f.InjectedError != nil {
		return f.InjectedError
	}
	return ErrFake
}

func (f *Fake) next() (logic.Raw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailReads > 0 {
		f.FailReads--
		return 0, f.injected()
	}
	if f.Source != nil {
		f.Reads++
		return f.Source(), nil
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("fake adc: no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	f.Reads++
	return s, nil
}

type fakeOneShot struct {
	f     *Fake
	spent bool
}

func (o *fakeOneShot) Configure(cfg Config) error {
	if o.spent {
		return ErrHandleSpent
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.f.mu.Lock()
	defer o.f.mu.Unlock()
	if o.f.ConfigureErr != nil {
		return o.f.ConfigureErr
	}
	o.f.Configs = append(o.f.Configs, cfg)
	return nil
}

func (o *fakeOneShot) Read() (logic.Raw, error) {
	if o.spent {
		return 0, ErrHandleSpent
	}
	return o.f.next()
}

func (o *fakeOneShot) SetWindow(w logic.Window) error {
	if o.spent {
		return ErrHandleSpent
	}
	o.f.mu.Lock()
	defer o.f.mu.Unlock()
	if o.f.FailWindow > 0 {
		o.f.FailWindow--
		return o.f.injected()
	}
	o.f.Windows = append(o.f.Windows, w)
	return nil
}

func (o *fakeOneShot) EnterContinuous() (Continuous, error) {
	if o.spent {
		return nil, ErrHandleSpent
	}
	o.f.mu.Lock()
	defer o.f.mu.Unlock()
	if o.f.FailEnter > 0 {
		o.f.FailEnter--
		return nil, o.f.injected()
	}
	o.spent = true
	o.f.continuous = true
	o.f.Transitions = append(o.f.Transitions, "continuous")
	return &fakeContinuous{f: o.f}, nil
}

type fakeContinuous struct {
	f     *Fake
	spent bool
}

func (c *fakeContinuous) Read(ctx context.Context) (logic.Raw, error) {
	if c.spent {
		return 0, ErrHandleSpent
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.f.next()
}

func (c *fakeContinuous) ExitToOneShot() (OneShot, error) {
	if c.spent {
		return nil, ErrHandleSpent
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if c.f.FailExit > 0 {
		c.f.FailExit--
		return nil, c.f.injected()
	}
	c.spent = true
	c.f.continuous = false
	c.f.Transitions = append(c.f.Transitions, "one-shot")
	return &fakeOneShot{f: c.f}, nil
}
