package runner

import (
	"fmt"
	"strings"
)

// Op is a benchmark operation kind.
type Op int

const (
	OpPut Op = iota
	OpList
	OpHead
	OpGet
	OpDelete
)

var opNames = map[Op]string{
	OpPut:    "PUT",
	OpList:   "LIST",
	OpHead:   "HEAD",
	OpGet:    "GET",
	OpDelete: "DELETE",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Fatal reports whether exhausting retries for this operation aborts the run.
// The run cannot meaningfully continue without the primary dataset operations;
// HEAD is a best-effort existence probe.
func (o Op) Fatal() bool {
	return o != OpHead
}

// ParseOp converts an operation name from configuration.
func ParseOp(s string) (Op, error) {
	switch strings.ToUpper(s) {
	case "PUT":
		return OpPut, nil
	case "LIST":
		return OpList, nil
	case "HEAD":
		return OpHead, nil
	case "GET":
		return OpGet, nil
	case "DELETE":
		return OpDelete, nil
	default:
		return 0, fmt.Errorf("unknown operation %q", s)
	}
}

// ParseOps converts a configured operation list, preserving order.
func ParseOps(names []string) ([]Op, error) {
	ops := make([]Op, 0, len(names))
	for _, name := range names {
		op, err := ParseOp(name)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
