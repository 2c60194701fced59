package main

import (
	"context"

	"github.com/pkg/errors"
)

func main() {
	app := mustBootstrapGTLAPI()
	defer app.Close()

	if err := app.Run(); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
