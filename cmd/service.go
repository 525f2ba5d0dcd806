package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/text/language"
)

// git commit used for this build; supplied at compile time
var gitCommit string

type serviceVersion struct {
	BuildVersion string `json:"build,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
	GitCommit    string `json:"git_commit,omitempty"`
}

type serviceMongo struct {
	client      *mongo.Client
	products    *mongo.Collection
	favorites   *mongo.Collection
	searchIndex string
	resultLimit int
	facetLimit  int
	readTimeout int
}

type serviceTranslations struct {
	bundle *i18n.Bundle
}

type serviceContext struct {
	randomSource *rand.Rand
	config       *serviceConfig
	translations serviceTranslations
	version      serviceVersion
	mongo        serviceMongo
	jwtKey       []byte
}

type stringValidator struct {
	invalid bool
}

func (v *stringValidator) requireValue(value string, label string) {
	if value == "" {
		log.Printf("[VALIDATE] missing %s", label)
		v.invalid = true
	}
}

func (v *stringValidator) Invalid() bool {
	return v.invalid
}

func (p *serviceContext) initVersion() {
	buildVersion := "unknown"
	files, _ := filepath.Glob("buildtag.*")
	if len(files) == 1 {
		buildVersion = strings.Replace(files[0], "buildtag.", "", 1)
	}

	p.version = serviceVersion{
		BuildVersion: buildVersion,
		GoVersion:    fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		GitCommit:    gitCommit,
	}

	log.Printf("[SERVICE] version.BuildVersion = [%s]", p.version.BuildVersion)
	log.Printf("[SERVICE] version.GoVersion    = [%s]", p.version.GoVersion)
	log.Printf("[SERVICE] version.GitCommit    = [%s]", p.version.GitCommit)
}

func (p *serviceContext) initMongo() {
	connTimeout := timeoutWithMinimum(p.config.Mongo.ConnTimeout, 5)
	readTimeout := timeoutWithMinimum(p.config.Mongo.ReadTimeout, 5)

	opts := options.Client().
		ApplyURI(p.config.Mongo.URI).
		SetConnectTimeout(time.Duration(connTimeout) * time.Second).
		SetMaxPoolSize(100).
		SetMaxConnIdleTime(90 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(connTimeout)*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		log.Printf("error connecting to mongo: %s", err.Error())
		os.Exit(1)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Printf("error pinging mongo: %s", err.Error())
		os.Exit(1)
	}

	db := client.Database(p.config.Mongo.Database)

	p.mongo = serviceMongo{
		client:      client,
		products:    db.Collection(p.config.Mongo.Collections.Products),
		favorites:   db.Collection(p.config.Mongo.Collections.Favorites),
		searchIndex: p.config.Mongo.SearchIndex,
		resultLimit: p.config.Mongo.ResultLimit,
		facetLimit:  p.config.Mongo.FacetLimit,
		readTimeout: readTimeout,
	}

	log.Printf("[SERVICE] mongo.database    = [%s]", p.config.Mongo.Database)
	log.Printf("[SERVICE] mongo.products    = [%s]", p.config.Mongo.Collections.Products)
	log.Printf("[SERVICE] mongo.favorites   = [%s]", p.config.Mongo.Collections.Favorites)
	log.Printf("[SERVICE] mongo.searchIndex = [%s]", p.mongo.searchIndex)
	log.Printf("[SERVICE] mongo.resultLimit = [%d]", p.mongo.resultLimit)
	log.Printf("[SERVICE] mongo.facetLimit  = [%d]", p.mongo.facetLimit)
}

func (p *serviceContext) initTranslations() {
	defaultLang := language.English

	bundle := i18n.NewBundle(defaultLang)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	toml, _ := filepath.Glob("i18n/*.toml")
	for _, f := range toml {
		bundle.MustLoadMessageFile(f)
	}

	p.translations = serviceTranslations{
		bundle: bundle,
	}

	langs := []string{}
	for _, tag := range bundle.LanguageTags() {
		langs = append(langs, tag.String())
	}

	log.Printf("[SERVICE] supported languages = [%s]", strings.Join(langs, ", "))
}

func (p *serviceContext) validateConfig() {
	var values stringValidator

	values.requireValue(p.config.Service.Port, "service port")
	values.requireValue(p.config.Service.JWTKey, "jwt key")
	values.requireValue(p.config.Mongo.URI, "mongo uri")
	values.requireValue(p.config.Mongo.Database, "mongo database")
	values.requireValue(p.config.Mongo.Collections.Products, "products collection")
	values.requireValue(p.config.Mongo.Collections.Favorites, "favorites collection")
	values.requireValue(p.config.Mongo.SearchIndex, "search index name")

	if values.Invalid() == true {
		log.Printf("[VALIDATE] exiting due to missing configuration value(s) above")
		os.Exit(1)
	}
}

func (p *serviceContext) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.mongo.client.Disconnect(ctx); err != nil {
		log.Printf("error disconnecting from mongo: %s", err.Error())
	}
}

func initializeService(cfg *serviceConfig) *serviceContext {
	p := serviceContext{}

	p.config = cfg
	p.randomSource = rand.New(rand.NewSource(time.Now().UnixNano()))
	p.jwtKey = []byte(cfg.Service.JWTKey)

	p.validateConfig()

	p.initTranslations()
	p.initVersion()
	p.initMongo()

	return &p
}
