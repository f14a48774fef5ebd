// Package rover assembles the peripheral drivers described by a
// config.Config into one service and publishes what they report on the bus.
//
// The service is driven from one goroutine (the CLI or Serve). The only
// other goroutine is the edge worker that delivers echo edges to the range
// finder, whose results reach this package through a sink.
package rover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"tinygo.org/x/drivers"

	"rovercode-go/bus"
	"rovercode-go/drivers/coproc"
	"rovercode-go/drivers/drv8830"
	"rovercode-go/drivers/mcp9808"
	"rovercode-go/drivers/motorhat"
	"rovercode-go/drivers/pca9685"
	"rovercode-go/drivers/tb6612"
	"rovercode-go/drivers/us100"
	"rovercode-go/errcode"
	"rovercode-go/line"
	"rovercode-go/services/config"
	"rovercode-go/types"
	"rovercode-go/x/mathx"
	"rovercode-go/x/ramp"
	"rovercode-go/x/timex"
)

// Resources is the hardware the service borrows. Pins may be nil when the
// configuration names no GPIO lines.
type Resources struct {
	I2C     drivers.I2C
	Pins    line.PinFactory
	Clock   timex.Clock
	Sleeper timex.Sleeper
}

type Options struct {
	// Conn receives everything the service publishes. A private bus is used
	// when nil.
	Conn   *bus.Connection
	Logger *slog.Logger
}

type Service struct {
	cfg   *config.Config
	conn  *bus.Connection
	log   *slog.Logger
	clock timex.Clock

	pwm    *pca9685.Device
	servo  pca9685.Servo
	bridge *tb6612.Device
	hat    *motorhat.Device
	dacs   map[string]*drv8830.Device
	thermo *mcp9808.Device
	ranger *us100.Device
	copro  *coproc.Device

	worker  *line.EdgeWorker
	stopW   context.CancelFunc
	detach  func()
	ranges  chan us100.Measurement
	timeout time.Duration
	ready   bool
	speed   float64
	sleeper timex.Sleeper
}

// New builds every driver the configuration names. It does not touch the
// I²C bus; call Init before use.
func New(cfg *config.Config, res Resources, opts Options) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if res.I2C == nil {
		return nil, errcode.New(errcode.InvalidConfig, "rover.new", "no i2c bus")
	}
	if res.Sleeper == nil {
		res.Sleeper = timex.Real{}
	}
	if res.Clock == nil {
		res.Clock = timex.Real{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	conn := opts.Conn
	if conn == nil {
		conn = bus.NewBus(8).NewConnection("rover")
	}

	s := &Service{
		cfg:     cfg,
		conn:    conn,
		log:     log.With("svc", "rover"),
		clock:   res.Clock,
		sleeper: res.Sleeper,
		dacs:    map[string]*drv8830.Device{},
		timeout: time.Duration(cfg.Ranger.TimeoutMs) * time.Millisecond,
	}

	s.pwm = pca9685.New(res.I2C, pca9685.Config{Address: cfg.PWM.Address, Sleeper: res.Sleeper, Logger: log})
	servo, err := s.pwm.ServoWith(cfg.Servo.Channel, cfg.Servo.Calibration())
	if err != nil {
		return nil, err
	}
	s.servo = servo

	switch cfg.Bridge.Kind {
	case config.BridgeMotorHAT:
		s.hat = motorhat.New(s.pwm, motorhat.Config{Logger: log})
	default:
		if err := s.buildBridge(res, log); err != nil {
			return nil, err
		}
	}

	for _, d := range cfg.DAC {
		s.dacs[d.Name] = drv8830.New(res.I2C, drv8830.Config{Address: d.Address, Logger: log})
	}
	if cfg.Thermometer.Address != 0 {
		s.thermo = mcp9808.New(res.I2C, mcp9808.Config{Address: cfg.Thermometer.Address, Logger: log})
	}
	if cfg.Coproc.Address != 0 {
		s.copro = coproc.New(res.I2C, coproc.Config{
			Address:    cfg.Coproc.Address,
			ReplyDelay: time.Duration(cfg.Coproc.ReplyDelayMs) * time.Millisecond,
			Sleeper:    res.Sleeper,
			Logger:     log,
		})
	}
	if cfg.Ranger.Trigger != "" {
		if err := s.buildRanger(res, log); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func needPins(res Resources, what string) error {
	if res.Pins == nil {
		return errcode.New(errcode.InvalidConfig, "rover.new", what+" needs a pin factory")
	}
	return nil
}

func (s *Service) buildBridge(res Resources, log *slog.Logger) error {
	if err := needPins(res, "tb6612"); err != nil {
		return err
	}
	b := s.cfg.Bridge
	ma, err := res.Pins.Output(b.PinMA, line.Low)
	if err != nil {
		return errcode.Wrap(errcode.IOError, "rover.new", b.PinMA, err)
	}
	mb, err := res.Pins.Output(b.PinMB, line.Low)
	if err != nil {
		return errcode.Wrap(errcode.IOError, "rover.new", b.PinMB, err)
	}
	a, err := s.pwm.Motor(b.MotorA)
	if err != nil {
		return err
	}
	m, err := s.pwm.Motor(b.MotorB)
	if err != nil {
		return err
	}
	s.bridge = tb6612.New(ma, mb, a, m, tb6612.Config{
		SwitchDelay: time.Duration(b.SwitchDelayMs) * time.Millisecond,
		Sleeper:     res.Sleeper,
		Logger:      log,
	})
	return nil
}

func (s *Service) buildRanger(res Resources, log *slog.Logger) error {
	if err := needPins(res, "ranger"); err != nil {
		return err
	}
	r := s.cfg.Ranger
	trig, err := res.Pins.Output(r.Trigger, line.Low)
	if err != nil {
		return errcode.Wrap(errcode.IOError, "rover.new", r.Trigger, err)
	}
	echo, err := res.Pins.Input(r.Echo, line.PullDown)
	if err != nil {
		return errcode.Wrap(errcode.IOError, "rover.new", r.Echo, err)
	}
	s.ranges = make(chan us100.Measurement, 1)
	notify := us100.SinkFunc(func(m us100.Measurement) {
		select {
		case s.ranges <- m:
		default:
		}
	})
	s.ranger = us100.New(trig, echo, us100.Config{
		Sleeper:  res.Sleeper,
		Logger:   log,
		Sink:     fanout{BusSink{Conn: s.conn, Topic: TopicRange}, notify},
		Debounce: time.Duration(r.DebounceUs) * time.Microsecond,
	})
	s.worker = line.NewEdgeWorker(res.Clock, 16)
	return nil
}

// Config is the topology the service was built from.
func (s *Service) Config() *config.Config { return s.cfg }

// Conn is the connection the service publishes on.
func (s *Service) Conn() *bus.Connection { return s.conn }

func (s *Service) publish(topic bus.Topic, v any) {
	s.conn.Publish(s.conn.NewMessage(topic, v, true))
}

func (s *Service) publishState(level types.Level, err error) {
	st := types.ServiceState{Level: level, TS: s.clock.NowNanos() / int64(time.Millisecond)}
	if err != nil {
		st.Status = string(errcode.Of(err))
	}
	s.publish(TopicState, st)
}

// Init resets and configures the PWM controller, starts edge delivery for
// the range finder and publishes the configuration.
func (s *Service) Init(ctx context.Context) error {
	err := s.initPWM(ctx)
	if err == nil && s.ranger != nil && s.detach == nil {
		wctx, cancel := context.WithCancel(context.Background())
		s.worker.Start(wctx)
		s.detach, err = s.ranger.Attach(s.worker)
		if err != nil {
			cancel()
			s.detach = nil
		} else {
			s.stopW = cancel
		}
	}
	if err != nil {
		s.publishState(types.LevelIdle, err)
		return err
	}
	s.ready = true
	s.cfg.Publish(s.conn)
	s.publish(TopicPWM, s.PWM())
	s.publishState(types.LevelReady, nil)
	s.log.Info("ready", "pwm_hz", s.pwm.Frequency(), "dacs", len(s.dacs))
	return nil
}

func (s *Service) initPWM(ctx context.Context) error {
	var err error
	if s.hat != nil {
		err = s.hat.Initialize(ctx)
	} else {
		err = s.pwm.Initialize(ctx)
	}
	if err != nil {
		return err
	}
	return s.pwm.SetFrequency(ctx, s.cfg.PWM.Frequency)
}

func (s *Service) requireReady(op string) error {
	if !s.ready {
		return errcode.New(errcode.NotInitialised, op, "call Init first")
	}
	return nil
}

// PWM reports the controller's frequency settings.
func (s *Service) PWM() types.PWMValue {
	v := types.PWMValue{
		Addr:        s.pwm.Address(),
		Frequency:   s.pwm.Frequency(),
		Initialised: s.pwm.Initialised(),
	}
	if v.Frequency > 0 {
		p := pca9685.Prescale(v.Frequency)
		v.Prescale = p
		v.ActualHz = pca9685.OutputFrequency(p)
	}
	return v
}

// SetFrequency reprograms the PWM frequency.
func (s *Service) SetFrequency(ctx context.Context, hz int) error {
	if err := s.requireReady("rover.set_frequency"); err != nil {
		return err
	}
	if err := s.pwm.SetFrequency(ctx, hz); err != nil {
		return err
	}
	s.publish(TopicPWM, s.PWM())
	return nil
}

// SetChannel writes raw ticks to one PWM channel.
func (s *Service) SetChannel(ch int, on, off uint16) error {
	return s.pwm.SetChannel(ch, on, off)
}

// Drive runs both drive motors at speed in [-1, 1].
func (s *Service) Drive(ctx context.Context, speed float64) (types.DriveValue, error) {
	if err := s.requireReady("rover.drive"); err != nil {
		return types.DriveValue{}, err
	}
	var err error
	if s.hat != nil {
		if err = s.hat.SetSpeed(motorhat.MotorA, speed); err == nil {
			err = s.hat.SetSpeed(motorhat.MotorB, speed)
		}
	} else {
		err = s.bridge.SetPWM(ctx, speed)
	}
	if err != nil {
		return types.DriveValue{}, err
	}
	v := types.DriveValue{
		Speed:     speed,
		Direction: tb6612.StateFor(speed).String(),
		Duty:      int(pca9685.DutyFromSpeed(speed)),
	}
	s.speed = speed
	s.publish(TopicDrive, v)
	return v, nil
}

// Speed is the last speed Drive applied.
func (s *Service) Speed() float64 { return s.speed }

// DriveRamp moves the drive speed linearly to 'to' over dur in steps
// increments, publishing each step. It stops at the first failing step.
func (s *Service) DriveRamp(ctx context.Context, to float64, dur time.Duration, steps int) (types.DriveValue, error) {
	if err := s.requireReady("rover.drive_ramp"); err != nil {
		return types.DriveValue{}, err
	}
	var last types.DriveValue
	err := ramp.Linear(ctx, s.sleeper, s.speed, mathx.Clamp(to, -1, 1), dur, steps, func(l float64) error {
		v, err := s.Drive(ctx, l)
		if err == nil {
			last = v
		}
		return err
	})
	return last, err
}

// Steer moves the steering servo rel ticks from centre.
func (s *Service) Steer(rel int) (types.SteerValue, error) {
	if err := s.requireReady("rover.steer"); err != nil {
		return types.SteerValue{}, err
	}
	if err := s.servo.Set(rel); err != nil {
		return types.SteerValue{}, err
	}
	v := types.SteerValue{Rel: rel, OffTicks: s.servo.OffTicks(rel)}
	s.publish(TopicSteer, v)
	return v, nil
}

func (s *Service) dac(name string) (*drv8830.Device, error) {
	d, ok := s.dacs[name]
	if !ok {
		return nil, errcode.New(errcode.InvalidConfig, "rover.dac", fmt.Sprintf("no dac %q", name))
	}
	return d, nil
}

// DACNames lists the configured voltage-DAC drivers in sorted order.
func (s *Service) DACNames() []string {
	names := make([]string, 0, len(s.dacs))
	for n := range s.dacs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (s *Service) dacWrite(name string, control byte, write func(*drv8830.Device) error) error {
	d, err := s.dac(name)
	if err != nil {
		return err
	}
	if err := write(d); err != nil {
		return err
	}
	s.publish(dacTopic(name), types.DacValue{Name: name, Addr: d.Address(), Control: control})
	return nil
}

// DacDrive sets a DRV8830 to speed VSET steps; the sign picks direction.
func (s *Service) DacDrive(name string, speed int) error {
	return s.dacWrite(name, drv8830.ControlByte(speed), func(d *drv8830.Device) error { return d.Drive(speed) })
}

func (s *Service) DacStandBy(name string) error {
	return s.dacWrite(name, byte(drv8830.Freewheel), (*drv8830.Device).StandBy)
}

func (s *Service) DacBrake(name string) error {
	return s.dacWrite(name, byte(drv8830.Brake), (*drv8830.Device).Brake)
}

// DacFaults reads and clears every DRV8830 fault register. Latched faults
// are returned and published as rover/dac/<name>/fault events.
func (s *Service) DacFaults() ([]types.DacFault, error) {
	var out []types.DacFault
	for _, name := range s.DACNames() {
		d := s.dacs[name]
		err := d.CheckFault()
		var fe *drv8830.FaultError
		switch {
		case err == nil:
			continue
		case errors.As(err, &fe):
			f := types.DacFault{Name: name, Addr: d.Address(), Fault: fe.Fault.String(), Raw: fe.Raw}
			s.log.Warn("dac fault", "dac", name, "fault", f.Fault, "bits", fe.Raw)
			s.conn.Publish(s.conn.NewMessage(dacFaultTopic(name), f, false))
			out = append(out, f)
		default:
			return out, err
		}
	}
	return out, nil
}

// Temperature reads the MCP9808.
func (s *Service) Temperature() (types.TemperatureValue, error) {
	if s.thermo == nil {
		return types.TemperatureValue{}, errcode.New(errcode.Unsupported, "rover.temperature", "no thermometer configured")
	}
	r, err := s.thermo.Read()
	if err != nil {
		return types.TemperatureValue{}, err
	}
	v := types.TemperatureValue{
		Celsius:    r.Celsius,
		Critical:   r.Critical,
		AboveUpper: r.AboveUpper,
		BelowLower: r.BelowLower,
		TS:         s.clock.NowNanos() / int64(time.Millisecond),
	}
	s.publish(TopicTemperature, v)
	return v, nil
}

// Thermometer exposes the MCP9808 for alert and limit configuration.
func (s *Service) Thermometer() (*mcp9808.Device, bool) { return s.thermo, s.thermo != nil }

// MeasureRange triggers the US-100 and waits for the echo. The result is
// also published on rover/range by the sink.
func (s *Service) MeasureRange(ctx context.Context) (types.RangeValue, error) {
	if s.ranger == nil {
		return types.RangeValue{}, errcode.New(errcode.Unsupported, "rover.range", "no ranger configured")
	}
	if err := s.requireReady("rover.range"); err != nil {
		return types.RangeValue{}, err
	}
	select {
	case <-s.ranges:
	default:
	}
	if err := s.ranger.StartMeasuring(ctx); err != nil {
		return types.RangeValue{}, err
	}
	t := time.NewTimer(s.timeout)
	defer t.Stop()
	select {
	case m := <-s.ranges:
		return rangeValue(m), nil
	case <-t.C:
		return types.RangeValue{}, errcode.New(errcode.Timeout, "rover.range", "no echo")
	case <-ctx.Done():
		return types.RangeValue{}, errcode.Wrap(errcode.Interrupted, "rover.range", "", ctx.Err())
	}
}

// Coproc exchanges one frame with the co-processor.
func (s *Service) Coproc(ctx context.Context, token uint64, st coproc.Status) (types.CoprocValue, error) {
	if s.copro == nil {
		return types.CoprocValue{}, errcode.New(errcode.Unsupported, "rover.coproc", "no co-processor configured")
	}
	r, err := s.copro.Exchange(ctx, token, st)
	if err != nil {
		return types.CoprocValue{}, err
	}
	v := types.CoprocValue{
		Token:    r.Token,
		Status:   r.Status.String(),
		Value:    r.Value,
		NumberMA: r.NumberMA,
		NumberMB: r.NumberMB,
	}
	s.publish(TopicCoproc, v)
	return v, nil
}

// Serve answers rover/get/<what> requests until ctx is done. <what> is one
// of temperature, range, faults, pwm.
func (s *Service) Serve(ctx context.Context) error {
	sub := s.conn.Subscribe(TopicGet.Append(bus.SingleLevel))
	defer s.conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			s.answer(ctx, m)
		}
	}
}

func (s *Service) answer(ctx context.Context, req *bus.Message) {
	var (
		v   any
		err error
	)
	switch what := req.Topic[len(req.Topic)-1]; what {
	case "temperature":
		v, err = s.Temperature()
	case "range":
		v, err = s.MeasureRange(ctx)
	case "faults":
		v, err = s.DacFaults()
	case "pwm":
		v = s.PWM()
	default:
		err = errcode.New(errcode.Unsupported, "rover.serve", what)
	}
	if err != nil {
		s.log.Debug("request failed", "topic", req.Topic.String(), "err", err)
		v = err
	}
	s.conn.Reply(req, v, false)
}

// Close stops the motors, disables the bridge, switches every PWM channel
// off and stops edge delivery.
func (s *Service) Close() error {
	var errs []error
	if s.ready {
		ctx := context.Background()
		if s.bridge != nil {
			if err := s.bridge.SetPWM(ctx, 0); err != nil {
				errs = append(errs, err)
			}
		}
		if s.hat != nil {
			if err := s.hat.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		for _, name := range s.DACNames() {
			if err := s.dacs[name].StandBy(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.pwm.Halt(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.bridge != nil {
		if err := s.bridge.Reset(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	if s.stopW != nil {
		s.stopW()
		s.stopW = nil
	}
	s.ready = false
	err := errors.Join(errs...)
	s.publishState(types.LevelStopped, err)
	return err
}
