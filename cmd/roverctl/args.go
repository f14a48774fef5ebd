package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"rovercode-go/drivers/coproc"
	"rovercode-go/errcode"
)

func badArg(what, s string, err error) error {
	msg := what + " " + strconv.Quote(s)
	if err == nil {
		return errcode.New(errcode.InvalidConfig, "roverctl.args", msg)
	}
	return errcode.Wrap(errcode.InvalidConfig, "roverctl.args", msg, err)
}

func parseFloat(what, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, badArg(what, s, err)
	}
	return v, nil
}

func parseInt(what, s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, badArg(what, s, err)
	}
	return int(v), nil
}

func parseTick(what, s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, badArg(what, s, err)
	}
	return uint16(v), nil
}

func parseToken(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, badArg("token", s, err)
	}
	return v, nil
}

// parseStatus accepts the wire letter or the status name.
func parseStatus(s string) (coproc.Status, error) {
	if len(s) == 1 {
		if st, ok := coproc.ParseStatus(s[0]); ok {
			return st, nil
		}
	}
	for _, st := range []coproc.Status{coproc.StatusInitial, coproc.StatusSuccess, coproc.StatusError, coproc.StatusNop} {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return coproc.StatusUnknown, badArg("status", s, nil)
}

// hold keeps the outputs applied for d, or until ctx is cancelled.
func hold(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
