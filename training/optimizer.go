package training

import (
	"fmt"
	"math"
	"sync"

	"github.com/moodlens/moodlens/tensor"
)

// Optimizer interface defines the methods that all optimizers must implement
type Optimizer interface {
	Step() error      // Updates model parameters based on gradients
	ZeroGrad()        // Resets gradients for all parameters
	GetLR() float64   // Gets current learning rate
	SetLR(lr float64) // Sets learning rate
}

// SGD implements Stochastic Gradient Descent with optional momentum, weight
// decay and Nesterov acceleration.
type SGD struct {
	parameters   []*tensor.Tensor
	learningRate float64
	momentum     float64
	weightDecay  float64
	dampening    float64
	nesterov     bool
	velocities   map[*tensor.Tensor]*tensor.Tensor
	mutex        sync.RWMutex
}

// NewSGD creates a new SGD optimizer
func NewSGD(parameters []*tensor.Tensor, lr, momentum, weightDecay, dampening float64, nesterov bool) *SGD {
	sgd := &SGD{
		parameters:   parameters,
		learningRate: lr,
		momentum:     momentum,
		weightDecay:  weightDecay,
		dampening:    dampening,
		nesterov:     nesterov,
		velocities:   make(map[*tensor.Tensor]*tensor.Tensor),
	}

	if momentum > 0 {
		for _, param := range parameters {
			if param.RequiresGrad() {
				velocity, _ := tensor.Zeros(param.Shape, param.DType)
				sgd.velocities[param] = velocity
			}
		}
	}

	return sgd
}

// Step performs a single optimization step
func (sgd *SGD) Step() error {
	sgd.mutex.Lock()
	defer sgd.mutex.Unlock()

	for _, param := range sgd.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		grad := param.Grad()

		if sgd.weightDecay > 0 {
			// grad = grad + weight_decay * param
			weightDecayTerm, err := tensor.Mul(param, tensor.FromScalar(sgd.weightDecay))
			if err != nil {
				return fmt.Errorf("weight decay multiplication failed: %v", err)
			}
			grad, err = tensor.Add(grad, weightDecayTerm)
			if err != nil {
				return fmt.Errorf("weight decay addition failed: %v", err)
			}
		}

		if sgd.momentum > 0 {
			velocity := sgd.velocities[param]
			if velocity == nil {
				v, err := tensor.Zeros(param.Shape, param.DType)
				if err != nil {
					return fmt.Errorf("velocity initialization failed: %v", err)
				}
				velocity = v
				sgd.velocities[param] = velocity
			}

			// velocity = momentum * velocity + (1 - dampening) * grad
			momentumTerm, err := tensor.Mul(velocity, tensor.FromScalar(sgd.momentum))
			if err != nil {
				return fmt.Errorf("momentum term calculation failed: %v", err)
			}
			gradTerm, err := tensor.Mul(grad, tensor.FromScalar(1.0-sgd.dampening))
			if err != nil {
				return fmt.Errorf("gradient term calculation failed: %v", err)
			}
			newVelocity, err := tensor.Add(momentumTerm, gradTerm)
			if err != nil {
				return fmt.Errorf("velocity update failed: %v", err)
			}
			if err := velocity.SetData(newVelocity.Data); err != nil {
				return fmt.Errorf("velocity data update failed: %v", err)
			}

			if sgd.nesterov {
				// grad = grad + momentum * velocity
				nesterovTerm, err := tensor.Mul(newVelocity, tensor.FromScalar(sgd.momentum))
				if err != nil {
					return fmt.Errorf("nesterov term calculation failed: %v", err)
				}
				grad, err = tensor.Add(grad, nesterovTerm)
				if err != nil {
					return fmt.Errorf("nesterov update failed: %v", err)
				}
			} else {
				grad = newVelocity
			}
		}

		// param = param - lr * grad
		lrGrad, err := tensor.Mul(grad, tensor.FromScalar(sgd.learningRate))
		if err != nil {
			return fmt.Errorf("learning rate scaling failed: %v", err)
		}
		newData, err := tensor.Sub(param, lrGrad)
		if err != nil {
			return fmt.Errorf("parameter update failed: %v", err)
		}
		if err := param.SetData(newData.Data); err != nil {
			return fmt.Errorf("parameter data update failed: %v", err)
		}
	}

	return nil
}

// ZeroGrad resets gradients for all parameters
func (sgd *SGD) ZeroGrad() {
	tensor.ZeroGrad(sgd.parameters)
}

// GetLR returns the current learning rate
func (sgd *SGD) GetLR() float64 {
	sgd.mutex.RLock()
	defer sgd.mutex.RUnlock()
	return sgd.learningRate
}

// SetLR sets the learning rate
func (sgd *SGD) SetLR(lr float64) {
	sgd.mutex.Lock()
	defer sgd.mutex.Unlock()
	sgd.learningRate = lr
}

// Adam implements the Adam optimizer
type Adam struct {
	parameters  []*tensor.Tensor
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64
	step        int64
	m           map[*tensor.Tensor]*tensor.Tensor // First moment estimates
	v           map[*tensor.Tensor]*tensor.Tensor // Second moment estimates
	mutex       sync.RWMutex
}

// NewAdam creates a new Adam optimizer
func NewAdam(parameters []*tensor.Tensor, lr, beta1, beta2, eps, weightDecay float64) *Adam {
	adam := &Adam{
		parameters:  parameters,
		lr:          lr,
		beta1:       beta1,
		beta2:       beta2,
		eps:         eps,
		weightDecay: weightDecay,
		m:           make(map[*tensor.Tensor]*tensor.Tensor),
		v:           make(map[*tensor.Tensor]*tensor.Tensor),
	}

	for _, param := range parameters {
		if param.RequiresGrad() {
			m, _ := tensor.Zeros(param.Shape, param.DType)
			v, _ := tensor.Zeros(param.Shape, param.DType)
			adam.m[param] = m
			adam.v[param] = v
		}
	}

	return adam
}

// Step performs a single optimization step
func (adam *Adam) Step() error {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()

	adam.step++

	bias1 := 1.0 - math.Pow(adam.beta1, float64(adam.step))
	bias2 := 1.0 - math.Pow(adam.beta2, float64(adam.step))

	for _, param := range adam.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		grad := param.Grad()

		if adam.weightDecay > 0 {
			weightDecayTerm, err := tensor.Mul(param, tensor.FromScalar(adam.weightDecay))
			if err != nil {
				return fmt.Errorf("weight decay multiplication failed: %v", err)
			}
			grad, err = tensor.Add(grad, weightDecayTerm)
			if err != nil {
				return fmt.Errorf("weight decay addition failed: %v", err)
			}
		}

		m := adam.m[param]
		v := adam.v[param]
		if m == nil || v == nil {
			mNew, err := tensor.Zeros(param.Shape, param.DType)
			if err != nil {
				return fmt.Errorf("first moment initialization failed: %v", err)
			}
			vNew, err := tensor.Zeros(param.Shape, param.DType)
			if err != nil {
				return fmt.Errorf("second moment initialization failed: %v", err)
			}
			m, v = mNew, vNew
			adam.m[param] = m
			adam.v[param] = v
		}

		// m = beta1 * m + (1 - beta1) * grad
		beta1Term, err := tensor.Mul(m, tensor.FromScalar(adam.beta1))
		if err != nil {
			return fmt.Errorf("first moment beta1 term failed: %v", err)
		}
		gradTerm, err := tensor.Mul(grad, tensor.FromScalar(1.0-adam.beta1))
		if err != nil {
			return fmt.Errorf("first moment grad term failed: %v", err)
		}
		newM, err := tensor.Add(beta1Term, gradTerm)
		if err != nil {
			return fmt.Errorf("first moment update failed: %v", err)
		}

		// v = beta2 * v + (1 - beta2) * grad^2
		beta2Term, err := tensor.Mul(v, tensor.FromScalar(adam.beta2))
		if err != nil {
			return fmt.Errorf("second moment beta2 term failed: %v", err)
		}
		gradSquared, err := tensor.Mul(grad, grad)
		if err != nil {
			return fmt.Errorf("gradient squaring failed: %v", err)
		}
		gradSquaredTerm, err := tensor.Mul(gradSquared, tensor.FromScalar(1.0-adam.beta2))
		if err != nil {
			return fmt.Errorf("second moment grad squared term failed: %v", err)
		}
		newV, err := tensor.Add(beta2Term, gradSquaredTerm)
		if err != nil {
			return fmt.Errorf("second moment update failed: %v", err)
		}

		if err := m.SetData(newM.Data); err != nil {
			return fmt.Errorf("first moment data update failed: %v", err)
		}
		if err := v.SetData(newV.Data); err != nil {
			return fmt.Errorf("second moment data update failed: %v", err)
		}

		// Bias-corrected estimates
		mHat, err := tensor.Mul(newM, tensor.FromScalar(1.0/bias1))
		if err != nil {
			return fmt.Errorf("first moment bias correction failed: %v", err)
		}
		vHat, err := tensor.Mul(newV, tensor.FromScalar(1.0/bias2))
		if err != nil {
			return fmt.Errorf("second moment bias correction failed: %v", err)
		}

		// update = lr * m_hat / (sqrt(v_hat) + eps)
		vHatSqrt, err := tensor.Sqrt(vHat)
		if err != nil {
			return fmt.Errorf("second moment sqrt failed: %v", err)
		}
		denominator, err := tensor.Add(vHatSqrt, tensor.FromScalar(adam.eps))
		if err != nil {
			return fmt.Errorf("denominator computation failed: %v", err)
		}
		update, err := tensor.Div(mHat, denominator)
		if err != nil {
			return fmt.Errorf("update division failed: %v", err)
		}
		lrUpdate, err := tensor.Mul(update, tensor.FromScalar(adam.lr))
		if err != nil {
			return fmt.Errorf("learning rate scaling failed: %v", err)
		}

		newData, err := tensor.Sub(param, lrUpdate)
		if err != nil {
			return fmt.Errorf("parameter update failed: %v", err)
		}
		if err := param.SetData(newData.Data); err != nil {
			return fmt.Errorf("parameter data update failed: %v", err)
		}
	}

	return nil
}

// ZeroGrad resets gradients for all parameters
func (adam *Adam) ZeroGrad() {
	tensor.ZeroGrad(adam.parameters)
}

// GetLR returns the current learning rate
func (adam *Adam) GetLR() float64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.lr
}

// SetLR sets the learning rate
func (adam *Adam) SetLR(lr float64) {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	adam.lr = lr
}
