package zwayClient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/zabeloliver/zway-exporter/zway-api/zwayStructs"
)

var acceptedClasses = []string{
	zwayStructs.CommandClassSwitchBinary,
	zwayStructs.CommandClassSensorBinary,
	zwayStructs.CommandClassSensorMultilevel,
}

// ScanDevices walks Run/devices and replaces the registry with one record per
// data channel of the accepted command classes. The previous registry is kept
// if the scan fails.
func (c *ZwayApiClient) ScanDevices() (zwayStructs.Registry, error) {
	const command = "Run/devices"
	body, err := c.Request(command)
	if err != nil {
		return nil, err
	}

	var tree zwayStructs.DeviceTree
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, &DecodeError{Command: command, Body: truncate(body), Err: err}
	}

	devices := make(zwayStructs.Registry)
	for _, base := range sortedKeys(tree) {
		if !isDigits(base) {
			return nil, &DecodeError{Command: command, Err: fmt.Errorf("device id %q is not numeric", base)}
		}
		instances := tree[base].Instances
		if instances == nil {
			return nil, &DecodeError{Command: command, Err: fmt.Errorf("device %s has no instances", base)}
		}

		count := 0
		for _, instance := range sortedKeys(instances) {
			classes := instances[instance].CommandClasses
			if classes == nil {
				return nil, &DecodeError{Command: command, Err: fmt.Errorf("device %s instance %s has no commandClasses", base, instance)}
			}

			for _, class := range sortedKeys(classes) {
				if !slices.Contains(acceptedClasses, class) {
					continue
				}
				data := classes[class].Data
				if data == nil {
					return nil, &DecodeError{Command: command, Err: fmt.Errorf("device %s instance %s class %s has no data", base, instance, class)}
				}

				for _, dataNum := range sortedKeys(data) {
					if !isDigits(dataNum) {
						continue
					}
					rec := newRecord(instance, class, dataNum)

					sensorType, err := c.sensorType(base, rec)
					if err != nil {
						if !skippable(err) {
							return nil, err
						}
						c.logger.Warnf("Ignoring device %s instance %s class %s data %s: %v", base, instance, class, dataNum, err)
						continue
					}
					rec.Name = base + "_" + strings.ReplaceAll(strings.TrimSpace(sensorType), " ", "_")

					devices[fmt.Sprintf("%s.%d", base, count)] = rec
					count++
				}
			}
		}
	}

	c.devices = devices
	c.logger.Info("Get List of Devices: ", len(devices))
	return devices.Copy(), nil
}

// skippable reports whether a failed sensor type lookup only concerns that one
// channel. Exhausted retries still abort the scan.
func skippable(err error) bool {
	var decodeErr *DecodeError
	var statusErr *StatusError
	return errors.As(err, &decodeErr) || errors.As(err, &statusErr)
}

func newRecord(instance string, class string, dataNum string) zwayStructs.DeviceRecord {
	rec := zwayStructs.DeviceRecord{
		InstanceNum:  instance,
		CommandClass: class,
		DataNum:      dataNum,
	}
	if class == zwayStructs.CommandClassSwitchBinary {
		rec.ValueSuffix = zwayStructs.SuffixLevel
		rec.ValueType = zwayStructs.ValueBoolean
	} else {
		rec.ValueSuffix = zwayStructs.SuffixVal
		rec.ValueType = zwayStructs.ValueNumeric
	}
	return rec
}

// DeviceIDs returns the known device ids ordered by their float value.
func (c *ZwayApiClient) DeviceIDs() []string {
	return c.devices.Ids()
}

// Registry returns a copy of the current device registry.
func (c *ZwayApiClient) Registry() zwayStructs.Registry {
	return c.devices.Copy()
}

func (c *ZwayApiClient) SaveRegistry(w io.Writer) error {
	return c.devices.Save(w)
}

func (c *ZwayApiClient) record(id string) (zwayStructs.DeviceRecord, error) {
	rec, ok := c.devices[id]
	if !ok {
		return rec, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return rec, nil
}

func (c *ZwayApiClient) DeviceName(id string) (string, error) {
	rec, err := c.record(id)
	if err != nil {
		return "", err
	}
	return rec.Name, nil
}

// DeviceType returns the sensor type string the server reports for a device,
// e.g. "Temperature".
func (c *ZwayApiClient) DeviceType(id string) (string, error) {
	rec, err := c.record(id)
	if err != nil {
		return "", err
	}
	return c.sensorType(zwayStructs.BaseId(id), rec)
}

func (c *ZwayApiClient) sensorType(base string, rec zwayStructs.DeviceRecord) (string, error) {
	command := fmt.Sprintf("Run/devices[%s].instances[%s].commandClasses[%s].data[%s].sensorTypeString.value",
		base, rec.InstanceNum, rec.CommandClass, rec.DataNum)
	body, err := c.Request(command)
	if err != nil {
		return "", err
	}

	var s *string
	if err := json.Unmarshal(body, &s); err != nil {
		return "", &DecodeError{Command: command, Body: truncate(body), Err: err}
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		return "", &DecodeError{Command: command, Body: truncate(body), Err: errors.New("empty sensor type")}
	}
	return *s, nil
}

// GetValue asks the device to refresh and returns the new value. Boolean
// channels read 1 for "true" and 0 otherwise.
func (c *ZwayApiClient) GetValue(id string) (float64, error) {
	rec, err := c.record(id)
	if err != nil {
		return 0, err
	}
	base := zwayStructs.BaseId(id)

	command := fmt.Sprintf("Run/devices[%s].instances[%s].commandClasses[%s].Get(sensorType=-1)",
		base, rec.InstanceNum, rec.CommandClass)
	if _, err := c.Request(command); err != nil {
		return 0, err
	}

	command = fmt.Sprintf("Run/devices[%s].instances[%s].commandClasses[%s].data[%s].%s",
		base, rec.InstanceNum, rec.CommandClass, rec.DataNum, rec.ValueSuffix)
	body, err := c.Request(command)
	if err != nil {
		return 0, err
	}

	if rec.ValueType == zwayStructs.ValueBoolean {
		return decodeBool(body), nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(string(body)), 64)
	if err != nil {
		return 0, &DecodeError{Command: command, Body: truncate(body), Err: err}
	}
	return value, nil
}

func decodeBool(body []byte) float64 {
	if strings.TrimSpace(string(body)) == "true" {
		return 1
	}
	return 0
}

// BatteryLevel returns the battery charge in percent. The battery is always
// reported on instance 0.
func (c *ZwayApiClient) BatteryLevel(id string) (int, error) {
	if _, err := c.record(id); err != nil {
		return 0, err
	}
	command := fmt.Sprintf("Run/devices[%s].instances[0].Battery.data.last.value", zwayStructs.BaseId(id))
	body, err := c.Request(command)
	if err != nil {
		return 0, err
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, &DecodeError{Command: command, Body: truncate(body), Err: err}
	}
	return level, nil
}

func (c *ZwayApiClient) SoftwareVersion() (string, error) {
	const command = "Data"
	body, err := c.Request(command)
	if err != nil {
		return "", err
	}
	var data zwayStructs.ControllerData
	if err := json.Unmarshal(body, &data); err != nil {
		return "", &DecodeError{Command: command, Body: truncate(body), Err: err}
	}
	if data.Controller == nil || data.Controller.Data == nil || data.Controller.Data.SoftwareRevisionVersion == nil {
		return "", &DecodeError{Command: command, Body: truncate(body), Err: errors.New("missing controller.data.softwareRevisionVersion")}
	}
	return data.Controller.Data.SoftwareRevisionVersion.Value, nil
}

// ReadAll reads every known device once, in id order. Devices that fail are
// logged and left out. Battery is nil for devices without a battery.
func (c *ZwayApiClient) ReadAll() []zwayStructs.Reading {
	ids := c.DeviceIDs()
	readings := make([]zwayStructs.Reading, 0, len(ids))
	// one battery request per base device and sweep
	batteries := make(map[string]*int)
	for _, id := range ids {
		rec := c.devices[id]
		value, err := c.GetValue(id)
		if err != nil {
			c.logger.Errorf("Reading %s failed: %v", id, err)
			continue
		}
		reading := zwayStructs.Reading{Id: id, Name: rec.Name, Type: rec.ValueType, Value: value}
		base := zwayStructs.BaseId(id)
		battery, seen := batteries[base]
		if !seen {
			if level, err := c.BatteryLevel(id); err == nil {
				battery = &level
			} else {
				c.logger.Debugf("No battery level for %s: %v", base, err)
			}
			batteries[base] = battery
		}
		if battery != nil {
			level := *battery
			reading.Battery = &level
		}
		readings = append(readings, reading)
	}
	return readings
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.SortFunc(keys, func(a, b string) bool {
		na, errA := strconv.Atoi(a)
		nb, errB := strconv.Atoi(b)
		switch {
		case errA == nil && errB == nil:
			return na < nb
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return a < b
	})
	return keys
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
