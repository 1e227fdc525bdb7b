package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/noah-isme/campus-noticeboard/pkg/push"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("vapidkeys", pflag.ContinueOnError)
	envFormat := flagSet.Bool("env", false, "print as VAPID_PUBLIC_KEY/VAPID_PRIVATE_KEY lines for a .env file")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	publicKey, privateKey, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	if *envFormat {
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
		return nil
	}
	fmt.Printf("public:  %s\nprivate: %s\n", publicKey, privateKey)
	return nil
}
