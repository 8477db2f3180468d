package errs

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindConfigParse
	KindCredentialsInvalid
	KindInvalidArgument
	KindTransientNetwork
	KindRemoteService
	KindModelResponseMalformed
	KindStorageUnavailable
	KindSchema
	KindIO
)

var kindLabels = map[Kind]string{
	KindUnknown:                "error",
	KindConfigParse:            "config error",
	KindCredentialsInvalid:     "invalid credentials",
	KindInvalidArgument:        "invalid argument",
	KindTransientNetwork:       "network error (try again later)",
	KindRemoteService:          "remote service error",
	KindModelResponseMalformed: "malformed model response",
	KindStorageUnavailable:     "storage unavailable",
	KindSchema:                 "schema error",
	KindIO:                     "i/o error",
}

func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return kindLabels[KindUnknown]
}

// Error is a classified failure. Op names the operation that failed, e.g. "reddit.GetListing".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind without a cause,
// so callers can write errors.Is(err, errs.InvalidArgument).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Op == "" && t.Kind == e.Kind
}

var (
	ConfigParse            = &Error{Kind: KindConfigParse}
	CredentialsInvalid     = &Error{Kind: KindCredentialsInvalid}
	InvalidArgument        = &Error{Kind: KindInvalidArgument}
	TransientNetwork       = &Error{Kind: KindTransientNetwork}
	RemoteService          = &Error{Kind: KindRemoteService}
	ModelResponseMalformed = &Error{Kind: KindModelResponseMalformed}
	StorageUnavailable     = &Error{Kind: KindStorageUnavailable}
	Schema                 = &Error{Kind: KindSchema}
	IO                     = &Error{Kind: KindIO}
)

func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var exitCodes = map[Kind]int{
	KindInvalidArgument:        64,
	KindSchema:                 65,
	KindRemoteService:          69,
	KindStorageUnavailable:     73,
	KindIO:                     74,
	KindTransientNetwork:       75,
	KindModelResponseMalformed: 76,
	KindCredentialsInvalid:     77,
	KindConfigParse:            78,
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := exitCodes[KindOf(err)]; ok {
		return code
	}
	return 1
}

func Message(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", KindOf(err), err)
}
