package domain

import (
	"fmt"
	"strings"
)

// VehicleClass is a capacity tier. Classes are totally ordered: a larger
// value always means a larger vehicle.
type VehicleClass int

const (
	ClassNone VehicleClass = iota
	ClassSmall
	ClassMedium
	ClassLarge
)

// AllClasses returns the known classes in ascending capacity order.
func AllClasses() []VehicleClass {
	return []VehicleClass{ClassSmall, ClassMedium, ClassLarge}
}

func (c VehicleClass) IsValid() bool {
	return c >= ClassSmall && c <= ClassLarge
}

func (c VehicleClass) String() string {
	switch c {
	case ClassSmall:
		return "small"
	case ClassMedium:
		return "medium"
	case ClassLarge:
		return "large"
	default:
		return "none"
	}
}

// ParseVehicleClass accepts the class names case-insensitively.
func ParseVehicleClass(s string) (VehicleClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small":
		return ClassSmall, nil
	case "medium":
		return ClassMedium, nil
	case "large":
		return ClassLarge, nil
	default:
		return ClassNone, fmt.Errorf("unknown vehicle class %q", s)
	}
}

func MinClass(a, b VehicleClass) VehicleClass {
	if a < b {
		return a
	}
	return b
}

func MaxClass(a, b VehicleClass) VehicleClass {
	if a > b {
		return a
	}
	return b
}

func (c VehicleClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *VehicleClass) UnmarshalText(b []byte) error {
	v, err := ParseVehicleClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
