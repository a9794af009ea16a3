package zwayStructs

import "encoding/json"

// Command classes the registry scan accepts.
const (
	CommandClassSwitchBinary     = "48"
	CommandClassSensorBinary     = "49"
	CommandClassSensorMultilevel = "50"
)

type ValueType string

const (
	ValueBoolean ValueType = "boolean"
	ValueNumeric ValueType = "numeric"
)

const (
	SuffixLevel = "level.value"
	SuffixVal   = "val.value"
)

// DeviceTree is the body of Run/devices, keyed by base device id.
type DeviceTree map[string]Device

type Device struct {
	Instances map[string]Instance `json:"instances"`
}

type Instance struct {
	CommandClasses map[string]CommandClass `json:"commandClasses"`
}

// CommandClass keeps its data entries raw. Only the digit keys are data
// channels, the rest are metadata of varying shape.
type CommandClass struct {
	Data map[string]json.RawMessage `json:"data"`
}

type ControllerData struct {
	Controller *struct {
		Data *struct {
			SoftwareRevisionVersion *struct {
				Value string `json:"value"`
			} `json:"softwareRevisionVersion"`
		} `json:"data"`
	} `json:"controller"`
}

type LoginRequest struct {
	Form      bool   `json:"form"`
	Login     string `json:"login"`
	Password  string `json:"password"`
	KeepMe    bool   `json:"keepme"`
	DefaultUI int    `json:"default_ui"`
}

type DeviceRecord struct {
	InstanceNum  string    `json:"instance_num"`
	CommandClass string    `json:"command_class"`
	DataNum      string    `json:"data_num"`
	ValueSuffix  string    `json:"value_suffix"`
	ValueType    ValueType `json:"value_type"`
	Name         string    `json:"name"`
}

type Registry map[string]DeviceRecord

type Reading struct {
	Id      string
	Name    string
	Type    ValueType
	Value   float64
	Battery *int
}
