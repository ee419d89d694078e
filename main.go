package main

import (
	_ "github.com/illustory/gallery/src/admintools"
	_ "github.com/illustory/gallery/src/downloader"
	_ "github.com/illustory/gallery/src/localstore"
	_ "github.com/illustory/gallery/src/migration"
	"github.com/illustory/gallery/src/website"
)

func main() {
	website.WebsiteCommand.Execute()
}
