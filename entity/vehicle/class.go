// 车辆类别参数与停车能耗定价
package vehicle

import (
	"fmt"
	"strings"
)

// Class 车辆类别
type Class int32

const (
	ClassCar   Class = iota // 小汽车（汽油）
	ClassBus                // 公交车
	ClassTruck              // 货车（柴油）
)

// classParams 车辆类别的燃油与质量参数
type classParams struct {
	FuelPrice     float64 // 燃油单价（元/升）
	EnergyDensity float64 // 燃油能量密度（kWh/L）
	Efficiency    float64 // 发动机效率
	Mass          float64 // 典型质量（kg）
	Passengers    int32   // 典型载客数
	Length        float64 // 车长（m）
}

var classes = map[Class]classParams{
	ClassCar:   {FuelPrice: 1.969, EnergyDensity: 9.7, Efficiency: 0.25, Mass: 1400, Passengers: 1, Length: 5},
	ClassBus:   {FuelPrice: 1.5, EnergyDensity: 11, Efficiency: 0.3, Mass: 1500, Passengers: 20, Length: 12},
	ClassTruck: {FuelPrice: 1.399, EnergyDensity: 10.7, Efficiency: 0.35, Mass: 11000, Passengers: 1, Length: 10},
}

func (c Class) params() classParams {
	if p, ok := classes[c]; ok {
		return p
	}
	return classes[ClassCar]
}

func (c Class) String() string {
	switch c {
	case ClassCar:
		return "car"
	case ClassBus:
		return "bus"
	case ClassTruck:
		return "truck"
	default:
		return fmt.Sprintf("class(%d)", int32(c))
	}
}

// ParseClass 从字符串解析车辆类别（大小写不敏感）
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "car", "":
		return ClassCar, nil
	case "bus":
		return ClassBus, nil
	case "truck":
		return ClassTruck, nil
	}
	return ClassCar, fmt.Errorf("unknown vehicle class %q", s)
}

// Mass 典型质量（kg）
func (c Class) Mass() float64 { return c.params().Mass }

// Passengers 典型载客数
func (c Class) Passengers() int32 { return c.params().Passengers }

// Length 车长（m）
func (c Class) Length() float64 { return c.params().Length }

// StopCost 计算车辆从当前速度完全停下所损失动能对应的燃油费用
// 功能：将动能折算为燃油体积并按车辆类别的燃油单价定价
// 参数：mass-质量（kg），speed-速度（m/s），class-车辆类别
// 返回：停车费用（元），速度非正时为0
// 算法说明：
// 1. 动能 E = 0.5*m*v^2（J），换算为kWh（除以3.6e6）
// 2. 燃油体积 = E / (发动机效率 * 能量密度)
// 3. 费用 = 燃油体积 * 燃油单价
func StopCost(mass, speed float64, class Class) float64 {
	if speed <= 0 || mass <= 0 {
		return 0
	}
	p := class.params()
	kwh := 0.5 * mass * speed * speed / 3.6e6
	litres := kwh / (p.Efficiency * p.EnergyDensity)
	return litres * p.FuelPrice
}
