// Package device implements the resident program of a step response
// board: per motor control tasks, the handshake responder and the
// console line discipline.
package device

// Actuator drives a motor.
type Actuator interface {
	// SetDutyCycle sets the signed duty in percent.
	SetDutyCycle(duty float64)
}

// Sensor measures a motor position.
type Sensor interface {
	// Read returns the count accumulated since the last Zero.
	Read() int64
	// Zero resets the accumulated count.
	Zero()
}

// Controller computes an actuation from a setpoint and a measurement.
type Controller interface {
	SetGain(gain float64)
	SetSetpoint(setpoint int64)
	Compute(setpoint, measured int64) float64
}

// ControllerFactory creates a controller with initial parameters.
type ControllerFactory func(gain float64, setpoint int64) Controller

// Proportional is a proportional controller.
type Proportional struct {
	Gain     float64
	Setpoint int64
}

// NewProportional is a ControllerFactory.
func NewProportional(gain float64, setpoint int64) Controller {
	return &Proportional{Gain: gain, Setpoint: setpoint}
}

// SetGain implements Controller.
func (p *Proportional) SetGain(gain float64) { p.Gain = gain }

// SetSetpoint implements Controller.
func (p *Proportional) SetSetpoint(setpoint int64) { p.Setpoint = setpoint }

// Compute implements Controller. The setpoint argument overrides the
// stored one.
func (p *Proportional) Compute(setpoint, measured int64) float64 {
	p.Setpoint = setpoint
	return p.Gain * float64(setpoint-measured)
}
