package block

import "fmt"

// Type identifies the kind of payload an envelope carries.
type Type byte

// The closed set of block kinds this module ever writes.
const (
	TypeSuperBlock Type = 0x31 // SBLK
	TypeBlob       Type = 0x32 // BLOB
	TypeFile       Type = 0x33 // FILE
	TypeTree       Type = 0x34 // TREE
	TypeFileVer    Type = 0x35 // FVER
	TypeIndex      Type = 0x36 // INDX
)

func (t Type) String() string {
	switch t {
	case TypeSuperBlock:
		return "SBLK"
	case TypeBlob:
		return "BLOB"
	case TypeFile:
		return "FILE"
	case TypeTree:
		return "TREE"
	case TypeFileVer:
		return "FVER"
	case TypeIndex:
		return "INDX"
	default:
		return fmt.Sprintf("Type(0x%02x)", byte(t))
	}
}

func (t Type) valid() bool {
	switch t {
	case TypeSuperBlock, TypeBlob, TypeFile, TypeTree, TypeFileVer, TypeIndex:
		return true
	default:
		return false
	}
}
