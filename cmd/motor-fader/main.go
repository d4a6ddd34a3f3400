// Command motor-fader drives a motorized fader to commanded positions and
// reports where it is.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/sweeney/motor-fader/internal/adc"
	"github.com/sweeney/motor-fader/internal/event"
	"github.com/sweeney/motor-fader/internal/fader"
	"github.com/sweeney/motor-fader/internal/gpio"
	"github.com/sweeney/motor-fader/internal/logic"
	"github.com/sweeney/motor-fader/internal/metrics"
	"github.com/sweeney/motor-fader/internal/monitor"
	"github.com/sweeney/motor-fader/internal/motor"
	"github.com/sweeney/motor-fader/internal/status"
)

// options is everything the command line controls.
type options struct {
	i2cBus   string
	addr     uint
	chip     string
	alertPin int
	pinIN1   int
	pinIN2   int
	pwmPin   string
	pwmFreq  physic.Frequency

	threshold      int
	epsilon        int
	calMin         int
	calMax         int
	fullScale      string
	dataRate       int
	queue          int
	poll           time.Duration
	maxMove        time.Duration
	stallTolerance int
	idlePoll       time.Duration

	readAttempts       int
	transitionAttempts int
	restartBackoff     time.Duration
	maxRestarts        int
	debounce           time.Duration

	demoPositions []logic.Percent
	demoInterval  time.Duration
	metricsPath   string
	metricsEvery  time.Duration

	logLevel   log.Level
	printState bool
}

func main() {
	args := os.Args[1:]
	if path := envFileFromArgs(args); path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			log.Warnf("loading %s: %s", path, err)
		}
	}

	opts, err := parseFlags(flag.CommandLine, args)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(opts.logLevel)

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// envFileFromArgs finds --env-file before flags are parsed, since the file
// supplies flag defaults. It returns ".env" when the flag is absent.
func envFileFromArgs(args []string) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if name != "env-file" || !strings.HasPrefix(a, "-") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ".env"
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options

	fs.String("env-file", ".env", "File of FADER_* environment defaults (missing file is ignored)")
	fs.StringVar(&o.i2cBus, "i2c-bus", envString("FADER_I2C_BUS", ""), "I2C bus name (empty for the first bus)")
	fs.UintVar(&o.addr, "addr", uint(envInt("FADER_ADDR", int(adc.DefaultAddr))), "ADS1115 I2C address")
	fs.StringVar(&o.chip, "chip", envString("FADER_CHIP", gpio.DefaultChip), "GPIO chip")
	fs.IntVar(&o.alertPin, "pin-alert", envInt("FADER_PIN_ALERT", gpio.DefaultPinAlert), "BCM pin for the ADS1115 ALERT/RDY output (-1 to poll instead)")
	fs.IntVar(&o.pinIN1, "pin-in1", envInt("FADER_PIN_IN1", gpio.DefaultPinIN1), "BCM pin for H-bridge IN1")
	fs.IntVar(&o.pinIN2, "pin-in2", envInt("FADER_PIN_IN2", gpio.DefaultPinIN2), "BCM pin for H-bridge IN2")
	fs.StringVar(&o.pwmPin, "pin-pwm", envString("FADER_PIN_PWM", gpio.DefaultPinPWM), "PWM-capable pin name for H-bridge enable")
	pwmFreq := fs.String("pwm-freq", envString("FADER_PWM_FREQ", motor.DefaultFrequency.String()), "PWM frequency")

	fs.IntVar(&o.threshold, "threshold", envInt("FADER_THRESHOLD", 20), "Comparator window half width (raw counts)")
	fs.IntVar(&o.epsilon, "epsilon", envInt("FADER_EPSILON", int(logic.DefaultArrivalEpsilon)), "Arrival tolerance (raw counts)")
	fs.IntVar(&o.calMin, "cal-min", envInt("FADER_CAL_MIN", 350), "Initial lowest reading")
	fs.IntVar(&o.calMax, "cal-max", envInt("FADER_CAL_MAX", 25000), "Initial highest reading")
	fs.StringVar(&o.fullScale, "full-scale", envString("FADER_FULL_SCALE", "4.096"), "ADS1115 full-scale range in volts")
	fs.IntVar(&o.dataRate, "data-rate", envInt("FADER_DATA_RATE", 250), "ADS1115 samples per second")
	fs.IntVar(&o.queue, "queue", envInt("FADER_QUEUE", 4), "Out-of-window conversions before ALERT (1, 2 or 4)")
	fs.DurationVar(&o.poll, "poll", envDuration("FADER_POLL", time.Millisecond), "Motion loop sample interval")
	fs.DurationVar(&o.maxMove, "max-move", envDuration("FADER_MAX_MOVE", 5*time.Second), "Abandon a move after this long (0 to disable)")
	fs.IntVar(&o.stallTolerance, "stall-tolerance", envInt("FADER_STALL_TOLERANCE", 0), "Distance increase tolerated between samples (raw counts)")
	fs.DurationVar(&o.idlePoll, "idle-poll", envDuration("FADER_IDLE_POLL", 0), "Sample the idle fader at this interval (0 relies on the alert pin)")

	fs.IntVar(&o.readAttempts, "read-attempts", envInt("FADER_READ_ATTEMPTS", 3), "Sensor read attempts before a fault")
	fs.IntVar(&o.transitionAttempts, "transition-attempts", envInt("FADER_TRANSITION_ATTEMPTS", 3), "Mode switch attempts before a fault")
	fs.DurationVar(&o.restartBackoff, "restart-backoff", envDuration("FADER_RESTART_BACKOFF", time.Second), "Pause before restarting the controller")
	fs.IntVar(&o.maxRestarts, "max-restarts", envInt("FADER_MAX_RESTARTS", 0), "Controller restarts before giving up (0 for no limit)")
	fs.DurationVar(&o.debounce, "debounce", envDuration("FADER_DEBOUNCE", 50*time.Millisecond), "Minimum spacing of alert-driven reads")

	demo := fs.String("demo", envString("FADER_DEMO", ""), "Comma-separated percents to cycle through, e.g. 0,50,100")
	fs.DurationVar(&o.demoInterval, "demo-interval", envDuration("FADER_DEMO_INTERVAL", 3*time.Second), "Demo step interval")
	fs.StringVar(&o.metricsPath, "metrics-file", envString("FADER_METRICS_FILE", ""), "node_exporter textfile path (empty to disable)")
	fs.DurationVar(&o.metricsEvery, "metrics-interval", envDuration("FADER_METRICS_INTERVAL", 15*time.Second), "Metrics textfile refresh interval")

	level := fs.String("log-level", envString("FADER_LOG_LEVEL", "info"), "Log level")
	fs.BoolVar(&o.printState, "print-state", false, "Print current state and exit")

	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.addr > 0x7f {
		return o, fmt.Errorf("addr: %#x is not a 7-bit I2C address", o.addr)
	}

	var err error
	if err = o.pwmFreq.Set(*pwmFreq); err != nil {
		return o, fmt.Errorf("pwm-freq: %w", err)
	}
	if o.demoPositions, err = parsePositions(*demo); err != nil {
		return o, fmt.Errorf("demo: %w", err)
	}
	if o.logLevel, err = log.ParseLevel(*level); err != nil {
		return o, fmt.Errorf("log-level: %w", err)
	}
	if o.alertPin < 0 && o.idlePoll == 0 {
		o.idlePoll = 20 * time.Millisecond
	}
	return o, nil
}

// controllerConfig converts the command line into controller tuning.
func (o options) controllerConfig() (fader.Config, error) {
	cfg := fader.DefaultConfig()

	fs, err := adc.ParseFullScale(o.fullScale)
	if err != nil {
		return cfg, err
	}
	dr, err := adc.ParseDataRate(o.dataRate)
	if err != nil {
		return cfg, err
	}
	q, err := adc.ParseComparatorQueue(o.queue)
	if err != nil {
		return cfg, err
	}
	cfg.Sensor.FullScale = fs
	cfg.Sensor.DataRate = dr
	cfg.Sensor.Queue = q

	cfg.Calibration = logic.NewCalibration(logic.Raw(o.calMin), logic.Raw(o.calMax))
	cfg.Threshold = logic.Raw(o.threshold)
	cfg.ArrivalEpsilon = logic.Raw(o.epsilon)
	cfg.StallTolerance = logic.Raw(o.stallTolerance)
	cfg.PollInterval = o.poll
	cfg.MaxMoveDuration = o.maxMove
	cfg.IdlePoll = o.idlePoll
	cfg.ReadAttempts = o.readAttempts
	cfg.TransitionAttempts = o.transitionAttempts
	return cfg, cfg.Validate()
}

func (o options) statusConfig() status.Config {
	return status.Config{
		Threshold:       int32(o.threshold),
		ArrivalEpsilon:  int32(o.epsilon),
		PollIntervalMs:  o.poll.Milliseconds(),
		MaxMoveMs:       o.maxMove.Milliseconds(),
		DebounceMs:      o.debounce.Milliseconds(),
		StallTolerance:  int32(o.stallTolerance),
		ReadAttempts:    o.readAttempts,
		TransitionTries: o.transitionAttempts,
	}
}

func run(opts options) error {
	cfg, err := opts.controllerConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init host: %w", err)
	}

	bus, err := i2creg.Open(opts.i2cBus)
	if err != nil {
		return fmt.Errorf("open i2c bus %q: %w", opts.i2cBus, err)
	}
	defer bus.Close()
	sensor := adc.NewADS1115(bus, uint16(opts.addr))

	driver, err := motor.NewRealDriver(opts.chip, opts.pinIN1, opts.pinIN2, opts.pwmPin, opts.pwmFreq)
	if err != nil {
		return fmt.Errorf("init motor: %w", err)
	}
	defer driver.Close()

	tracker := status.NewTracker(time.Now(), opts.statusConfig())
	actions := event.NewSignal[logic.SliderAction]()
	values := event.NewSignal[logic.SliderValue]()
	ctrl := fader.New(sensor, driver, actions, values, cfg, tracker, log.StandardLogger())

	// Print state mode
	if opts.printState {
		if err := ctrl.Configure(); err != nil {
			return err
		}
		if err := ctrl.Baseline(context.Background()); err != nil {
			return err
		}
		fmt.Println(string(status.FormatJSON(tracker.Snapshot())))
		return nil
	}

	var line gpio.AlertLine
	if opts.alertPin >= 0 {
		alert, err := gpio.NewRealAlertLine(opts.chip, opts.alertPin)
		if err != nil {
			return fmt.Errorf("init alert line: %w", err)
		}
		defer alert.Close()
		line = alert
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runTasks(tasks{
		opts:    opts,
		ctrl:    ctrl,
		tracker: tracker,
		actions: actions,
		values:  values,
		line:    line,
	}, sigCh)
}

// tasks is what runTasks starts.
type tasks struct {
	opts    options
	ctrl    *fader.Controller
	tracker *status.Tracker
	actions *event.Signal[logic.SliderAction]
	values  *event.Signal[logic.SliderValue]
	line    gpio.AlertLine // nil when polling
}

// runTasks runs the controller, the interrupt monitor, the value reporter
// and the scheduled jobs until a signal arrives or the controller gives up.
func runTasks(t tasks, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exporter := metrics.New(t.tracker)
	var wg sync.WaitGroup

	ctrlDone := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctrlDone <- fader.Supervise(ctx, t.ctrl, t.opts.restartBackoff, t.opts.maxRestarts)
	}()

	if t.line != nil {
		mon := monitor.New(t.line, t.actions, t.opts.debounce, log.StandardLogger())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("monitor stopped: %s", err)
			}
			forwarded, debounced := mon.Counts()
			log.Infof("monitor: %d alerts forwarded, %d debounced", forwarded, debounced)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		report(ctx, t.values)
	}()

	sched, err := schedule(t, exporter)
	if err != nil {
		return err
	}
	sched.Start()

	log.Infof("started: %s", status.FormatStatusEvent(t.tracker.Snapshot(), "STARTUP"))

	var result error
	select {
	case s := <-sig:
		log.Infof("received %v, shutting down", s)
	case err := <-ctrlDone:
		if err != nil {
			result = fmt.Errorf("controller: %w", err)
		}
	}

	cancel()
	if err := sched.Shutdown(); err != nil {
		log.Warnf("scheduler shutdown: %s", err)
	}
	wg.Wait()

	if t.opts.metricsPath != "" {
		if err := exporter.WriteTextfile(t.opts.metricsPath); err != nil {
			log.Warnf("final metrics flush: %s", err)
		}
	}
	log.Infof("stopped: %s", status.FormatStatusEvent(t.tracker.Snapshot(), "SHUTDOWN"))
	return result
}

// report consumes position changes. The presentation layer is external, so
// they are logged.
func report(ctx context.Context, values *event.Signal[logic.SliderValue]) {
	for {
		v, err := values.Wait(ctx)
		if err != nil {
			return
		}
		log.WithField("component", "reporter").Infof("position: %d%%", v.Percent)
	}
}

// schedule registers the demo cycler and the metrics flush.
func schedule(t tasks, exporter *metrics.Exporter) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	if len(t.opts.demoPositions) > 0 && t.opts.demoInterval > 0 {
		c := newCycler(t.opts.demoPositions, t.actions)
		if _, err := s.NewJob(gocron.DurationJob(t.opts.demoInterval), gocron.NewTask(c.next)); err != nil {
			return nil, fmt.Errorf("schedule demo: %w", err)
		}
		log.Infof("demo: cycling %v every %v", t.opts.demoPositions, t.opts.demoInterval)
	}

	if t.opts.metricsPath != "" && t.opts.metricsEvery > 0 {
		flush := func() {
			if err := exporter.WriteTextfile(t.opts.metricsPath); err != nil {
				log.Warnf("metrics: %s", err)
			}
		}
		if _, err := s.NewJob(gocron.DurationJob(t.opts.metricsEvery), gocron.NewTask(flush)); err != nil {
			return nil, fmt.Errorf("schedule metrics: %w", err)
		}
	}
	return s, nil
}

// cycler publishes MoveSlider through a fixed list of positions.
type cycler struct {
	mu        sync.Mutex
	positions []logic.Percent
	i         int
	actions   *event.Signal[logic.SliderAction]
}

func newCycler(positions []logic.Percent, actions *event.Signal[logic.SliderAction]) *cycler {
	return &cycler{positions: positions, actions: actions}
}

func (c *cycler) next() {
	c.mu.Lock()
	p := c.positions[c.i]
	c.i = (c.i + 1) % len(c.positions)
	c.mu.Unlock()
	c.actions.Publish(logic.MoveSlider(p))
}

// parsePositions parses "0,50,100" into percents.
func parsePositions(s string) ([]logic.Percent, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []logic.Percent
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("position %q: %w", f, err)
		}
		if n < 0 || n > 100 {
			return nil, fmt.Errorf("position %d outside 0..100", n)
		}
		out = append(out, logic.Percent(n))
	}
	return out, nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		log.Warnf("ignoring %s=%q: %s", key, v, err)
		return def
	}
	return int(n)
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warnf("ignoring %s=%q: %s", key, v, err)
		return def
	}
	return d
}
