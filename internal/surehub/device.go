package surehub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

var productNames = map[int]string{
	1: "Hub",
	2: "Repeater",
	3: "Pet Door Connect",
	4: "Pet Feeder Connect",
	5: "Programmer",
	6: "DualScan Cat Flap Connect",
}

// DeviceAttrs are the decoded fields of a device record.
type DeviceAttrs struct {
	Name           string `json:"name"`
	ProductID      int    `json:"product_id"`
	HouseholdID    int64  `json:"household_id"`
	ParentDeviceID int64  `json:"parent_device_id,omitempty"`
	SerialNumber   string `json:"serial_number,omitempty"`
	MacAddress     string `json:"mac_address,omitempty"`
}

// Device is a hub, flap, feeder or other connected product.
type Device struct {
	Resource
	DeviceAttrs
}

func newDevice(r Resource) (*Device, error) {
	d := &Device{Resource: r}
	if err := r.decode(&d.DeviceAttrs); err != nil {
		return nil, err
	}
	return d, nil
}

// ProductName returns the product's display name.
func (d *Device) ProductName() string {
	if name, ok := productNames[d.ProductID]; ok {
		return name
	}
	return "Unknown"
}

// Household fetches the household the device belongs to.
func (d *Device) Household(ctx context.Context) (*Household, error) {
	return FetchOne(ctx, d.session, HouseholdKind, fmt.Sprintf("/api/household/%d", d.HouseholdID), nil)
}

// Control returns the device's current control settings.
func (d *Device) Control(ctx context.Context) (json.RawMessage, error) {
	return d.session.Call(ctx, http.MethodGet, d.controlPath(), nil)
}

// SetControl sends new control settings. The local snapshot is not updated.
func (d *Device) SetControl(ctx context.Context, opts any) (json.RawMessage, error) {
	return d.session.Call(ctx, http.MethodPut, d.controlPath(), opts)
}

// Report returns the device report; args select the aggregate report.
func (d *Device) Report(ctx context.Context, args url.Values) (json.RawMessage, error) {
	return d.session.Report(ctx, fmt.Sprintf("/api/report/household/%d/device/%d", d.HouseholdID, d.id), args)
}

// Timeline always fails: devices have no timeline of their own.
func (d *Device) Timeline(opts ...WatcherOption) (*Watcher, error) {
	return DeviceKind.timeline(d.session, "", opts)
}

func (d *Device) controlPath() string {
	return fmt.Sprintf("/api/device/%d/control", d.id)
}
