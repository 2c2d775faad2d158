// internal/status/constants.go
package status

// Status block layout constants.
// These values define the register protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per device.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the device health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the Code of the last failure.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the device has been unhealthy.
const SlotSecondsInError = 2

// SlotConnState holds the current Code, error or not.
const SlotConnState = 3

// ---- RESERVED RANGE ----

// Slots 4-10 are reserved for future use.
const SlotReservedStart = 4
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// SecondsInErrorMax is where seconds_in_error saturates. It MUST NOT wrap.
const SecondsInErrorMax = 65535

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown, boot or connecting state.
const HealthUnknown uint16 = 0

// HealthOK represents a connected device delivering lines.
const HealthOK uint16 = 1

// HealthError represents a failed transport.
const HealthError uint16 = 2

// HealthStale represents a connected device that stopped delivering lines.
const HealthStale uint16 = 3

// HealthDisabled represents an operator-closed session.
const HealthDisabled uint16 = 4

// ---- SNAPSHOT IMAGE ----

// Register image of the telemetry snapshot, written at its own base address.
// Reals are scaled by ImageScale and stored as int16 two's complement;
// integers saturate at 65535.

const ImageTemperature = 0
const ImageHumidity = 1
const ImageSoilMoisture = 2
const ImageServoAngle = 3
const ImageDriveLevel = 4
const ImageActuatorOn = 5

// ImageUpdatedAtHi and ImageUpdatedAtLo hold the last update as unix seconds.
const ImageUpdatedAtHi = 6
const ImageUpdatedAtLo = 7

// ImageRegisters is the size of the snapshot image.
const ImageRegisters = 8

// ImageScale is the fixed-point factor for temperature and humidity.
const ImageScale = 10
