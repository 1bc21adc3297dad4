// Package advdata frames, decodes and encodes Bluetooth LE advertising data
// (AD structures) as carried in advertising and scan response PDUs.
//
// Refer to Core Specification Supplement, Part A.
package advdata

import "fmt"

// Type is an AD type code. Codes outside the assigned set are kept as-is.
type Type int

// Assigned AD types.
const (
	TypeFlags                       Type = 0x01
	TypeIncomplete16BitUUIDs        Type = 0x02
	TypeComplete16BitUUIDs          Type = 0x03
	TypeIncomplete32BitUUIDs        Type = 0x04
	TypeComplete32BitUUIDs          Type = 0x05
	TypeIncomplete128BitUUIDs       Type = 0x06
	TypeComplete128BitUUIDs         Type = 0x07
	TypeShortenedLocalName          Type = 0x08
	TypeCompleteLocalName           Type = 0x09
	TypeTxPowerLevel                Type = 0x0A
	TypeClassOfDevice               Type = 0x0D
	TypeSimplePairingHashC192       Type = 0x0E
	TypeSimplePairingRandomizerR192 Type = 0x0F
	TypeDeviceID                    Type = 0x10
	TypeSecurityManagerTKValue      Type = 0x10 // shares its code with TypeDeviceID
	TypeSecurityManagerOOBFlags     Type = 0x11
	TypePeripheralConnInterval      Type = 0x12
	TypeSolicitation16BitUUIDs      Type = 0x14
	TypeSolicitation128BitUUIDs     Type = 0x15
	TypeServiceData16BitUUID        Type = 0x16
	TypePublicTargetAddress         Type = 0x17
	TypeRandomTargetAddress         Type = 0x18
	TypeAppearance                  Type = 0x19
	TypeAdvertisingInterval         Type = 0x1A
	TypeLEDeviceAddress             Type = 0x1B
	TypeLERole                      Type = 0x1C
	TypeSimplePairingHashC256       Type = 0x1D
	TypeSimplePairingRandomizerR256 Type = 0x1E
	TypeSolicitation32BitUUIDs      Type = 0x1F
	TypeServiceData32BitUUID        Type = 0x20
	TypeServiceData128BitUUID       Type = 0x21
	TypeLESCConfirmationValue       Type = 0x22
	TypeLESCRandomValue             Type = 0x23
	TypeURI                         Type = 0x24
	TypeIndoorPositioning           Type = 0x25
	TypeTransportDiscoveryData      Type = 0x26
	TypeLESupportedFeatures         Type = 0x27
	TypeChannelMapUpdateIndication  Type = 0x28
	TypePBADV                       Type = 0x29
	TypeMeshMessage                 Type = 0x2A
	TypeMeshBeacon                  Type = 0x2B
	TypeBIGInfo                     Type = 0x2C
	TypeBroadcastCode               Type = 0x2D
	TypeResolvableSetIdentifier     Type = 0x2E
	TypeAdvertisingIntervalLong     Type = 0x2F
	TypeBroadcastName               Type = 0x30
	TypeEncryptedAdvertisingData    Type = 0x31
	TypePAResponseTimingInfo        Type = 0x32
	TypeElectronicShelfLabel        Type = 0x34
	Type3DInformationData           Type = 0x3D
	TypeManufacturerData            Type = 0xFF
)

var typeNames = map[Type]string{
	TypeFlags:                       "Flags",
	TypeIncomplete16BitUUIDs:        "Incomplete List of 16-bit Service or Service Class UUIDs",
	TypeComplete16BitUUIDs:          "Complete List of 16-bit Service or Service Class UUIDs",
	TypeIncomplete32BitUUIDs:        "Incomplete List of 32-bit Service or Service Class UUIDs",
	TypeComplete32BitUUIDs:          "Complete List of 32-bit Service or Service Class UUIDs",
	TypeIncomplete128BitUUIDs:       "Incomplete List of 128-bit Service or Service Class UUIDs",
	TypeComplete128BitUUIDs:         "Complete List of 128-bit Service or Service Class UUIDs",
	TypeShortenedLocalName:          "Shortened Local Name",
	TypeCompleteLocalName:           "Complete Local Name",
	TypeTxPowerLevel:                "Tx Power Level",
	TypeClassOfDevice:               "Class of Device",
	TypeSimplePairingHashC192:       "Simple Pairing Hash C-192",
	TypeSimplePairingRandomizerR192: "Simple Pairing Randomizer R-192",
	TypeDeviceID:                    "Device ID",
	TypeSecurityManagerOOBFlags:     "Security Manager Out of Band Flags",
	TypePeripheralConnInterval:      "Peripheral Connection Interval Range",
	TypeSolicitation16BitUUIDs:      "List of 16-bit Service Solicitation UUIDs",
	TypeSolicitation128BitUUIDs:     "List of 128-bit Service Solicitation UUIDs",
	TypeServiceData16BitUUID:        "Service Data - 16-bit UUID",
	TypePublicTargetAddress:         "Public Target Address",
	TypeRandomTargetAddress:         "Random Target Address",
	TypeAppearance:                  "Appearance",
	TypeAdvertisingInterval:         "Advertising Interval",
	TypeLEDeviceAddress:             "LE Bluetooth Device Address",
	TypeLERole:                      "LE Role",
	TypeSimplePairingHashC256:       "Simple Pairing Hash C-256",
	TypeSimplePairingRandomizerR256: "Simple Pairing Randomizer R-256",
	TypeSolicitation32BitUUIDs:      "List of 32-bit Service Solicitation UUIDs",
	TypeServiceData32BitUUID:        "Service Data - 32-bit UUID",
	TypeServiceData128BitUUID:       "Service Data - 128-bit UUID",
	TypeLESCConfirmationValue:       "LE Secure Connections Confirmation Value",
	TypeLESCRandomValue:             "LE Secure Connections Random Value",
	TypeURI:                         "URI",
	TypeIndoorPositioning:           "Indoor Positioning",
	TypeTransportDiscoveryData:      "Transport Discovery Data",
	TypeLESupportedFeatures:         "LE Supported Features",
	TypeChannelMapUpdateIndication:  "Channel Map Update Indication",
	TypePBADV:                       "PB-ADV",
	TypeMeshMessage:                 "Mesh Message",
	TypeMeshBeacon:                  "Mesh Beacon",
	TypeBIGInfo:                     "BIGInfo",
	TypeBroadcastCode:               "Broadcast_Code",
	TypeResolvableSetIdentifier:     "Resolvable Set Identifier",
	TypeAdvertisingIntervalLong:     "Advertising Interval - long",
	TypeBroadcastName:               "Broadcast_Name",
	TypeEncryptedAdvertisingData:    "Encrypted Advertising Data",
	TypePAResponseTimingInfo:        "Periodic Advertising Response Timing Information",
	TypeElectronicShelfLabel:        "Electronic Shelf Label",
	Type3DInformationData:           "3D Information Data",
	TypeManufacturerData:            "Manufacturer Specific Data",
}

// Known reports whether t is an assigned AD type.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// Name returns the assigned name of t.
func (t Type) Name() (string, bool) {
	n, ok := typeNames[t]
	return n, ok
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(0x%02x)", int(t))
}
