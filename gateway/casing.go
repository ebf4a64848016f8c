package gateway

import (
	"github.com/iancoleman/strcase"
)

// toCamelCase rewrites every payload key of the batch to lower camel case.
// Structural fields are not part of the payload and stay as they are.
func toCamelCase(b *Batch) {
	for i := range b.Extrinsics {
		b.Extrinsics[i].Payload = b.Extrinsics[i].Payload.RenameKeys(strcase.ToLowerCamel)
	}
	for i := range b.Calls {
		b.Calls[i].Payload = b.Calls[i].Payload.RenameKeys(strcase.ToLowerCamel)
	}
	for i := range b.Events {
		b.Events[i].Payload = b.Events[i].Payload.RenameKeys(strcase.ToLowerCamel)
	}
}
