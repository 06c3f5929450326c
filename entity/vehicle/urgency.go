package vehicle

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/randengine"
)

const (
	MinUrgency = 1
	MaxUrgency = 5
)

// 各车辆类别的紧急程度（1-5）分布
var urgencyWeights = map[Class][]float64{
	ClassCar:   {0.2, 0.25, 0.395, 0.15, 0.005},
	ClassBus:   {0.3, 0.5, 0.2, 0, 0},
	ClassTruck: {0.1, 0.5, 0.3, 0.1, 0},
}

// SampleUrgency 按车辆类别的分布抽取紧急程度
// 返回：[1,5]内的整数
func SampleUrgency(engine *randengine.Engine, class Class) int32 {
	weights, ok := urgencyWeights[class]
	if !ok {
		weights = urgencyWeights[ClassCar]
	}
	return engine.DiscreteDistribution(weights) + MinUrgency
}

// ClampUrgency 将紧急程度限制到[1,5]
func ClampUrgency(u int32) int32 {
	if u < MinUrgency {
		return MinUrgency
	}
	if u > MaxUrgency {
		return MaxUrgency
	}
	return u
}
