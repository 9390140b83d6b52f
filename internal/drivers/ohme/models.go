package ohme

import (
	"errors"
	"math"
)

// Mode is the charge session mode reported by the backend. It is an open
// set: values not listed here are kept as-is.
type Mode string

const (
	ModeDisconnected Mode = "DISCONNECTED"
	ModeMaxCharge    Mode = "MAX_CHARGE"
	ModeSmartCharge  Mode = "SMART_CHARGE"
	ModeStopped      Mode = "STOPPED"
)

// nominalVolts converts a vehicle power limit into a current rating
const nominalVolts = 240.0

var errMissingMode = errors.New("charge session has no mode")

// Power is the live electrical reading of a session
type Power struct {
	Amps  float64 `json:"amp"`
	Watts float64 `json:"watt"`
	Volts float64 `json:"volt"`
}

// Point is one charge graph sample: seconds since session start and energy level
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChargeDevice describes the physical charger
type ChargeDevice struct {
	ID                   string `json:"id"`
	ModelTypeDisplayName string `json:"modelTypeDisplayName"`
	FirmwareVersionLabel string `json:"firmwareVersionLabel"`
}

// PowerLimits holds a vehicle's charge power limit
type PowerLimits struct {
	MaxDemandW float64 `json:"maxDemandW"`
}

// CarModel describes a vehicle model
type CarModel struct {
	ID          string      `json:"id"`
	Make        string      `json:"make"`
	ModelName   string      `json:"modelName"`
	PowerLimits PowerLimits `json:"powerLimits"`
}

// Car is a vehicle attached to the account
type Car struct {
	ID             string   `json:"id"`
	ManufacturerID string   `json:"manufacturerId"`
	Model          CarModel `json:"model"`
}

// MaxAmps converts the vehicle's power limit to a current rating
func (c Car) MaxAmps() int {
	return int(math.Round(c.Model.PowerLimits.MaxDemandW / nominalVolts))
}

// DeviceSnapshot is the latest charge session state. It is replaced as a
// whole on every fetch.
type DeviceSnapshot struct {
	SessionID       string
	DeviceID        string
	Device          ChargeDevice
	Mode            Mode
	Power           *Power // nil while disconnected or idle
	StartTimeMillis int64
	Points          []Point
	Car             *Car // session vehicle, when the backend includes it
}

// placeholderSnapshot is held until the first successful fetch
func placeholderSnapshot() DeviceSnapshot {
	return DeviceSnapshot{Mode: ModeDisconnected}
}

func (s DeviceSnapshot) clone() DeviceSnapshot {
	out := s
	if s.Power != nil {
		p := *s.Power
		out.Power = &p
	}
	if s.Car != nil {
		c := *s.Car
		out.Car = &c
	}
	out.Points = append([]Point(nil), s.Points...)
	return out
}

// AccountSnapshot holds account, vehicle and device metadata
type AccountSnapshot struct {
	UserID        string
	Cars          []Car
	ChargeDevices []ChargeDevice
}

func (a AccountSnapshot) clone() AccountSnapshot {
	out := a
	out.Cars = append([]Car(nil), a.Cars...)
	out.ChargeDevices = append([]ChargeDevice(nil), a.ChargeDevices...)
	return out
}

// sessionJSON is the wire shape of one element of GET /v1/chargeSessions
type sessionJSON struct {
	SessionID    string       `json:"sessionId"`
	Mode         string       `json:"mode"`
	ChargeDevice ChargeDevice `json:"chargeDevice"`
	ChargeGraph  struct {
		Points []Point `json:"points"`
	} `json:"chargeGraph"`
	StartTime int64  `json:"startTime"`
	Power     *Power `json:"power"`
	Car       *Car   `json:"car"`
}

func (s sessionJSON) snapshot() (DeviceSnapshot, error) {
	if s.Mode == "" {
		return DeviceSnapshot{}, errMissingMode
	}
	return DeviceSnapshot{
		SessionID:       s.SessionID,
		DeviceID:        s.ChargeDevice.ID,
		Device:          s.ChargeDevice,
		Mode:            Mode(s.Mode),
		Power:           s.Power,
		StartTimeMillis: s.StartTime,
		Points:          s.ChargeGraph.Points,
		Car:             s.Car,
	}, nil
}

// accountJSON is the wire shape of GET /v1/users/me/account
type accountJSON struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Cars          []Car          `json:"cars"`
	ChargeDevices []ChargeDevice `json:"chargeDevices"`
}

func (a accountJSON) snapshot() AccountSnapshot {
	return AccountSnapshot{
		UserID:        a.User.ID,
		Cars:          a.Cars,
		ChargeDevices: a.ChargeDevices,
	}
}
