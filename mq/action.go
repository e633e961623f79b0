package mq

import (
	"context"
	"encoding/json"

	"planner/job"
)

// Publish return an action that writes a message each time its job fires.
//
// A single []byte or string argument is sent verbatim, any other arguments
// are sent as a JSON document of the positional and named arguments.
func Publish(p Producer) job.Func {
	return func(ctx context.Context, args job.Args) (job.Outcome, error) {
		value, err := payload(args)
		if err != nil {
			return job.Continue, err
		}
		return job.Continue, p.Product(ctx, value)
	}
}

type message struct {
	Args   []interface{} `json:"args,omitempty"`
	Kwargs job.Kwargs    `json:"kwargs,omitempty"`
}

func payload(args job.Args) ([]byte, error) {
	if len(args.Positional) == 1 && len(args.Named) == 0 {
		switch v := args.Positional[0].(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	}
	return json.Marshal(message{Args: args.Positional, Kwargs: args.Named})
}
