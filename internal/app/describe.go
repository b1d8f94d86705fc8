package app

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoprint"
)

// Describe renders the session's root file as proto source. With a symbol,
// only that element is rendered; symbol is a fully qualified name such as
// "demo.Echo" or "demo.SayRequest".
func (a *App) Describe(sess *Session, symbol string) (string, error) {
	fd, err := desc.WrapFile(sess.Schema.File())
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", sess.Schema.File().Path(), err)
	}

	var target desc.Descriptor = fd
	if symbol != "" {
		target = fd.FindSymbol(symbol)
		if target == nil {
			return "", fmt.Errorf("%s does not declare %s", fd.GetName(), symbol)
		}
	}

	printer := protoprint.Printer{
		Indent:                   "  ",
		OmitDetachedComments:     true,
		ForceFullyQualifiedNames: false,
	}
	return printer.PrintProtoToString(target)
}
