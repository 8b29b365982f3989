package main

import (
	"log"
	"os"

	"github.com/titpetric/cmsmigrate/migrate"
	"github.com/titpetric/cmsmigrate/migrations"
)

func main() {
	catalog, err := migrations.Catalog()
	if err != nil {
		log.Fatalf("An error occured: %+v", err)
	}
	log.Printf("Migration schema groups: %+v", catalog.Groups())
	log.Println("Migration statements for all schema groups")
	if err := migrate.Print(os.Stdout, catalog.All()); err != nil {
		log.Printf("An error occured: %+v", err)
	}
}
