package entity

import "github.com/daemonp/bosch2mqtt/internal/types"

// PointSensor is the binary sensor for one point. It is on while the point
// is open.
type PointSensor struct {
	base
	point *types.Point
}

func NewPointSensor(link Link, point *types.Point) *PointSensor {
	return &PointSensor{
		base:  newBase(link, objectKey("point", point.ID), point.Name, point.StatusObserver, link.StatusObserver()),
		point: point,
	}
}

func (e *PointSensor) Platform() Platform { return BinarySensor }

func (e *PointSensor) Discovery() map[string]any {
	d := map[string]any{}
	if dc := DeviceClass(e.point.Name); dc != "" {
		d["device_class"] = dc
	}
	return d
}

func (e *PointSensor) Render() Snapshot {
	return Snapshot{
		State:     onOff(e.point.IsOpen()),
		Available: e.link.Status() && PointAvailable(e.point),
	}
}
