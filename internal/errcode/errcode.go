// Package errcode defines the stable numeric error-code space shared across
// process boundaries. A code is a u32 where the high 16 bits identify the
// subsystem that owns the error and the low 16 bits identify the specific
// error within it. Codes travel on the wire (metacache streams, RPC) and must
// never be renumbered; every mapping is written out explicitly rather than
// derived from declaration order so a reviewer can diff it.
package errcode

import "fmt"

// Subsystem identifiers (high 16 bits of a code).
const (
	TypeSystem   uint16 = 0x0000
	TypeFileMeta uint16 = 0x0001
	TypeStorage  uint16 = 0x0002
	TypeDisk     uint16 = 0x0003
	TypeIAM      uint16 = 0x0004
	TypePolicy   uint16 = 0x0005
	TypeCrypto   uint16 = 0x0006
	TypeNotify   uint16 = 0x0007
	TypeAPI      uint16 = 0x0008
	TypeNetwork  uint16 = 0x0009
	TypeConfig   uint16 = 0x000A
	TypeAuth     uint16 = 0x000B
	TypeBucket   uint16 = 0x000C
	TypeObject   uint16 = 0x000D
	TypeQuery    uint16 = 0x000E
	TypeAdmin    uint16 = 0x000F
)

// typeNames is the exhaustive subsystem name table.
var typeNames = map[uint16]string{
	TypeSystem:   "System",
	TypeFileMeta: "FileMeta",
	TypeStorage:  "Storage",
	TypeDisk:     "Disk",
	TypeIAM:      "IAM",
	TypePolicy:   "Policy",
	TypeCrypto:   "Crypto",
	TypeNotify:   "Notify",
	TypeAPI:      "API",
	TypeNetwork:  "Network",
	TypeConfig:   "Config",
	TypeAuth:     "Auth",
	TypeBucket:   "Bucket",
	TypeObject:   "Object",
	TypeQuery:    "Query",
	TypeAdmin:    "Admin",
}

// Code is a combined subsystem + specific error code.
type Code uint32

// New combines a subsystem identifier and a specific code.
func New(subsystem, specific uint16) Code {
	return Code(uint32(subsystem)<<16 | uint32(specific))
}

// FromUint32 reinterprets a raw u32 as a Code.
func FromUint32(code uint32) Code {
	return Code(code)
}

// Uint32 returns the full code.
func (c Code) Uint32() uint32 {
	return uint32(c)
}

// Subsystem returns the high 16 bits.
func (c Code) Subsystem() uint16 {
	return uint16(c >> 16)
}

// Specific returns the low 16 bits.
func (c Code) Specific() uint16 {
	return uint16(c & 0xFFFF)
}

// SubsystemName returns the registered name of the owning subsystem, or
// "Unknown" for codes outside the table.
func (c Code) SubsystemName() string {
	if name, ok := typeNames[c.Subsystem()]; ok {
		return name
	}
	return "Unknown"
}

// IsStorage reports whether the code belongs to a storage-path subsystem.
func (c Code) IsStorage() bool {
	switch c.Subsystem() {
	case TypeStorage, TypeDisk, TypeFileMeta:
		return true
	}
	return false
}

func (c Code) String() string {
	return fmt.Sprintf("%s:%04X:%04X", c.SubsystemName(), c.Subsystem(), c.Specific())
}
