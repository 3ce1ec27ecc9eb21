package main

import (
	"github.com/Ainur20/weather-currency-bot/internal/cli"
)

func main() {
	cli.Execute()
}
