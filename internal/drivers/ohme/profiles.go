package ohme

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidProfile = errors.New("invalid charge profile")

// Profile is a synthetic vehicle whose power limit emulates a current rating.
// Descriptor is posted verbatim as the account's active car.
type Profile struct {
	Amps       int
	Descriptor json.RawMessage
}

// MaxDemandW returns the power limit declared by the descriptor
func (p Profile) MaxDemandW() float64 {
	var car Car
	if err := json.Unmarshal(p.Descriptor, &car); err != nil {
		return 0
	}
	return car.Model.PowerLimits.MaxDemandW
}

// ProfileTable maps supported current ratings to vehicle profiles, ascending by rating
type ProfileTable struct {
	profiles []Profile
}

// NewProfileTable validates the descriptors and orders the table by rating
func NewProfileTable(descriptors map[int]string) (ProfileTable, error) {
	profiles := make([]Profile, 0, len(descriptors))
	for amps, descriptor := range descriptors {
		if amps <= 0 {
			return ProfileTable{}, fmt.Errorf("%w: rating %d must be positive", ErrInvalidProfile, amps)
		}
		if !json.Valid([]byte(descriptor)) {
			return ProfileTable{}, fmt.Errorf("%w: descriptor for %dA is not valid JSON", ErrInvalidProfile, amps)
		}
		profiles = append(profiles, Profile{Amps: amps, Descriptor: json.RawMessage(descriptor)})
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Amps < profiles[j].Amps
	})
	return ProfileTable{profiles: profiles}, nil
}

// Resolve returns the greatest supported rating not above requested
func (t ProfileTable) Resolve(requested int) (Profile, bool) {
	for i := len(t.profiles) - 1; i >= 0; i-- {
		if t.profiles[i].Amps <= requested {
			return t.profiles[i], true
		}
	}
	return Profile{}, false
}

// Ratings lists the supported ratings in ascending order
func (t ProfileTable) Ratings() []int {
	ratings := make([]int, len(t.profiles))
	for i, p := range t.profiles {
		ratings[i] = p.Amps
	}
	return ratings
}

// Len returns the number of profiles
func (t ProfileTable) Len() int {
	return len(t.profiles)
}

// Built-in tier table: four solar demo cars with restricted demand and a
// Kona for the full 32A rate.
var defaultDescriptors = map[int]string{
	6:  `{"manufacturerId":"no_car_api_JVbisjT6fisJ04MSqZo0","model":{"modelDetailName":"Solar_6A_1.4kW","make":"SOLAR","id":"SOLAR_DEMO 6A","energyCapacityWh":50000,"averageWhPerKm":191,"imageUrl":"","powerLimits":{"maxDemandW":1400},"specifiedRangeKm":262,"modelName":"6A_1.4kW (2022)","providesBatterySoc":false,"modelYear":2022},"vehicleStatus":{}}`,
	10: `{"manufacturerId":"no_car_api_0T2Qh9THS24jRrxFUEIz","model":{"modelDetailName":"Solar_10A_2kW","make":"SOLAR","id":"SOLAR_DEMO","energyCapacityWh":50000,"averageWhPerKm":191,"imageUrl":"","powerLimits":{"maxDemandW":2400},"specifiedRangeKm":262,"modelName":"10A_2kW (2022)","providesBatterySoc":false,"modelYear":2022},"vehicleStatus":{}}`,
	13: `{"manufacturerId":"no_car_api_OP68mL2p6NKjjixjSzfy","model":{"modelDetailName":"Solar_13A_3kW","make":"SOLAR","id":"SOLAR_DEMO 13A","energyCapacityWh":50000,"averageWhPerKm":190,"imageUrl":"","powerLimits":{"maxDemandW":3600},"specifiedRangeKm":262,"modelName":"13A_3kW (2023)","providesBatterySoc":false,"modelYear":2023},"vehicleStatus":{}}`,
	21: `{"manufacturerId":"no_car_api_fzYQpg9rCVrLvKkcq3DT","model":{"modelDetailName":"Solar_5kW","make":"SOLAR","id":"SOLAR_DEMO 21A/5kW","energyCapacityWh":60000,"averageWhPerKm":191,"imageUrl":"","powerLimits":{"maxDemandW":5000},"specifiedRangeKm":262,"modelName":"21A_5kW (2023)","providesBatterySoc":false,"modelYear":2023},"vehicleStatus":{}}`,
	32: `{"manufacturerId":"no_car_api_KBUqSYtcGG0pOHupY1I1","model":{"modelDetailName":"Electric 64 kWh","make":"HYUNDAI","id":"HYUNDAI 2018 Kona Electric 64 kWh","energyCapacityWh":67500,"averageWhPerKm":165,"imageUrl":"https:\/\/s3.eu-west-2.amazonaws.com\/ohme-images-public\/cars\/evdb\/BEV\/1126\/enhanced.png","powerLimits":{"maxDemandW":7680},"specifiedRangeKm":449,"modelName":"Kona (2018)","providesBatterySoc":false,"modelYear":2018},"vehicleStatus":{}}`,
}

// DefaultProfiles returns the built-in tier table
func DefaultProfiles() ProfileTable {
	table, err := NewProfileTable(defaultDescriptors)
	if err != nil {
		panic(err)
	}
	return table
}
