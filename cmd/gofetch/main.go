package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newCommand(logrus.StandardLogger()).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
