package neat

import (
	"fmt"
	"math"
)

// ActivationType is a node activation function.
type ActivationType func(z float64) float64

// ActivationFunctions holds every activation usable in activation_options.
// The definitions follow neat-python, including its input scaling and clamping,
// so configs tuned for neat-python behave the same here.
var ActivationFunctions = map[string]ActivationType{
	"sigmoid":  Sigmoid,
	"tanh":     Tanh,
	"sin":      Sine,
	"gauss":    Gauss,
	"relu":     ReLU,
	"elu":      ELU,
	"lelu":     LeakyReLU,
	"selu":     SELU,
	"softplus": Softplus,
	"identity": Identity,
	"clamped":  Clamped,
	"inv":      Inv,
	"log":      Log,
	"exp":      Exp,
	"abs":      Abs,
	"hat":      Hat,
	"square":   Square,
	"cube":     Cube,
}

// GetActivation looks up an activation function by name.
func GetActivation(name string) (ActivationType, error) {
	fn, ok := ActivationFunctions[name]
	if !ok {
		return nil, fmt.Errorf("unknown activation function: %s", name)
	}
	return fn, nil
}

func Sigmoid(z float64) float64 {
	z = clamp(5*z, -60, 60)
	return 1 / (1 + math.Exp(-z))
}

func Tanh(z float64) float64 {
	return math.Tanh(clamp(2.5*z, -60, 60))
}

func Sine(z float64) float64 {
	return math.Sin(clamp(5*z, -60, 60))
}

func Gauss(z float64) float64 {
	z = clamp(z, -3.4, 3.4)
	return math.Exp(-5 * z * z)
}

func ReLU(z float64) float64 {
	return math.Max(0, z)
}

func ELU(z float64) float64 {
	if z > 0 {
		return z
	}
	return math.Exp(z) - 1
}

func LeakyReLU(z float64) float64 {
	if z > 0 {
		return z
	}
	return 0.005 * z
}

func SELU(z float64) float64 {
	const lam, alpha = 1.0507009873554804934193349852946, 1.6732632423543772848170429916717
	if z > 0 {
		return lam * z
	}
	return lam * alpha * (math.Exp(z) - 1)
}

func Softplus(z float64) float64 {
	z = clamp(5*z, -60, 60)
	return 0.2 * math.Log(1+math.Exp(z))
}

func Identity(z float64) float64 {
	return z
}

func Clamped(z float64) float64 {
	return clamp(z, -1, 1)
}

// Inv returns 1/z, or 0 when z is 0.
func Inv(z float64) float64 {
	if z == 0 {
		return 0
	}
	return 1 / z
}

func Log(z float64) float64 {
	return math.Log(math.Max(1e-7, z))
}

func Exp(z float64) float64 {
	return math.Exp(clamp(z, -60, 60))
}

func Abs(z float64) float64 {
	return math.Abs(z)
}

func Hat(z float64) float64 {
	return math.Max(0, 1-math.Abs(z))
}

func Square(z float64) float64 {
	return z * z
}

func Cube(z float64) float64 {
	return z * z * z
}
