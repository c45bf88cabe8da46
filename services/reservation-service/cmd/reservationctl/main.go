package main

import "github.com/manphil/backoffice/services/reservation-service/internal/cli"

func main() {
	cli.Execute()
}
