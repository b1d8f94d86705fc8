package stub

// RequestPolicy reduces a stub method's declared parameters to the request
// payload shape.
type RequestPolicy func(params []Shape, conv Convention) Shape

// ResponsePolicy reduces a stub method's declared return shape to the
// response payload shape. ok is false when nothing could be inferred and
// the caller should fall back to a type lookup.
type ResponsePolicy func(ret Shape, conv Convention) (shape Shape, ok bool)

var (
	_ RequestPolicy  = InferRequest
	_ ResponsePolicy = InferResponse
)

// InferRequest returns NoPayload when there are no parameters or the first
// one is the metadata type, otherwise the first parameter unchanged. Later
// parameters are never inspected.
func InferRequest(params []Shape, conv Convention) Shape {
	if len(params) == 0 {
		return NoPayload()
	}
	first := params[0]
	if first.Matches(conv) {
		return NoPayload()
	}
	return first
}

// InferResponse looks only at the first alternative of a union return:
// a tuple yields its first element and the metadata type yields NoPayload.
// Anything else, including a non-union return, infers nothing.
func InferResponse(ret Shape, conv Convention) (Shape, bool) {
	if ret.Kind != Union || len(ret.Elems) == 0 {
		return Shape{}, false
	}
	first := ret.Elems[0]
	switch {
	case first.Kind == Tuple:
		if len(first.Elems) == 0 {
			return Shape{}, false
		}
		return first.Elems[0], true
	case first.Matches(conv):
		return NoPayload(), true
	default:
		return Shape{}, false
	}
}
