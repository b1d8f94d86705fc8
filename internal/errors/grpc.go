package errors

import (
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type grpcClass struct {
	severity ErrorSeverity
	title    string
	message  string // empty means use the status message
	recovery []string
	bare     bool // Details carries only the status message
}

var grpcClasses = map[codes.Code]grpcClass{
	codes.Unavailable: {SeverityError, "Cannot Connect to Server", "The server is not responding.",
		[]string{"Check that the server is running", "Verify the address and port"}, false},
	codes.DeadlineExceeded: {SeverityError, "Request Timeout", "The server took too long to respond.",
		[]string{"Try again", "Increase the --timeout flag"}, false},
	codes.Unauthenticated: {SeverityError, "Authentication Required", "You need to authenticate to access this service.",
		[]string{"Pass credentials with --header"}, false},
	codes.PermissionDenied: {SeverityError, "Access Denied", "You don't have permission to call this method.",
		[]string{"Contact administrator for access"}, false},
	codes.InvalidArgument: {SeverityError, "Invalid Request", "The request contains invalid data.",
		[]string{"Check field values", "See details for specifics"}, true},
	codes.Internal: {SeverityError, "Server Error", "The server encountered an unexpected error.",
		[]string{"Try again later"}, false},
	codes.Unimplemented: {SeverityWarning, "Method Not Available", "This method is not implemented on the server.",
		[]string{"Check that the bundle matches the server version"}, false},
	codes.NotFound: {SeverityError, "Not Found", "The requested resource was not found.",
		[]string{"Check the request parameters"}, false},
	codes.AlreadyExists: {SeverityError, "Already Exists", "The resource already exists.",
		[]string{"Use a different identifier"}, false},
	codes.ResourceExhausted: {SeverityError, "Resource Exhausted", "The server has insufficient resources.",
		[]string{"Try again later", "Reduce request size"}, false},
	codes.FailedPrecondition: {SeverityError, "Failed Precondition", "The operation was rejected due to system state.",
		[]string{"See details for more info"}, true},
	codes.Aborted: {SeverityError, "Operation Aborted", "The operation was aborted.",
		[]string{"Try again"}, false},
	codes.OutOfRange: {SeverityError, "Out of Range", "A value is out of the valid range.",
		[]string{"Check input values"}, true},
	codes.DataLoss: {SeverityFatal, "Data Loss", "Unrecoverable data loss or corruption.",
		[]string{"Contact server administrator immediately"}, false},
	codes.Canceled: {SeverityInfo, "Request Cancelled", "The operation was cancelled.",
		[]string{}, false},
	codes.Unknown: {SeverityError, "Unknown Error", "",
		[]string{"Try again"}, false},
}

// ClassifyGRPCError converts a gRPC status error into a UIError. Errors that
// carry no gRPC status fall back to ClassifyError.
func ClassifyGRPCError(err error) *UIError {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return ClassifyError(err)
	}

	details := fmt.Sprintf("gRPC: %s - %s", st.Code(), st.Message())
	if extra := formatStatusDetails(st); extra != "" {
		details += "\n\n" + extra
	}

	class, ok := grpcClasses[st.Code()]
	if !ok {
		class = grpcClass{SeverityError, "Request Failed", "", []string{"Try again"}, false}
	}

	uiErr := &UIError{
		Err:      err,
		Severity: class.severity,
		Title:    class.title,
		Message:  class.message,
		Recovery: class.recovery,
		Details:  details,
	}
	if uiErr.Message == "" {
		uiErr.Message = st.Message()
	}
	if class.bare {
		uiErr.Details = st.Message()
	}
	return uiErr
}

// formatStatusDetails renders the rich error details attached to a status.
func formatStatusDetails(st *status.Status) string {
	details := st.Details()
	if len(details) == 0 {
		return ""
	}

	var sections []string
	for _, detail := range details {
		switch d := detail.(type) {
		case *errdetails.BadRequest:
			if fvs := d.GetFieldViolations(); len(fvs) > 0 {
				lines := []string{"Field Violations:"}
				for _, fv := range fvs {
					line := fmt.Sprintf("  %s: %s", fv.GetField(), fv.GetDescription())
					if r := fv.GetReason(); r != "" {
						line += fmt.Sprintf(" (reason: %s)", r)
					}
					lines = append(lines, line)
				}
				sections = append(sections, strings.Join(lines, "\n"))
			}

		case *errdetails.DebugInfo:
			lines := []string{"Debug Info:"}
			if d.GetDetail() != "" {
				lines = append(lines, "  "+d.GetDetail())
			}
			for _, entry := range d.GetStackEntries() {
				lines = append(lines, "  "+entry)
			}
			sections = append(sections, strings.Join(lines, "\n"))

		case *errdetails.ErrorInfo:
			lines := []string{"Error Info: " + d.GetReason()}
			if d.GetDomain() != "" {
				lines = append(lines, "  Domain: "+d.GetDomain())
			}
			for k, v := range d.GetMetadata() {
				lines = append(lines, fmt.Sprintf("  %s: %s", k, v))
			}
			sections = append(sections, strings.Join(lines, "\n"))

		case *errdetails.RetryInfo:
			if delay := d.GetRetryDelay(); delay != nil {
				sections = append(sections, fmt.Sprintf("Retry after: %v", delay.AsDuration()))
			}

		case *errdetails.RequestInfo:
			sections = append(sections, "Request ID: "+d.GetRequestId())

		case *errdetails.Help:
			if links := d.GetLinks(); len(links) > 0 {
				lines := []string{"Help:"}
				for _, link := range links {
					lines = append(lines, fmt.Sprintf("  %s: %s", link.GetDescription(), link.GetUrl()))
				}
				sections = append(sections, strings.Join(lines, "\n"))
			}

		default:
			sections = append(sections, fmt.Sprintf("Detail: %v", detail))
		}
	}

	return strings.Join(sections, "\n\n")
}
