package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"sort"
	"strings"
)

type serviceConfigSession struct {
	CookieName string `json:"cookie_name,omitempty"`
	ExpireDays int    `json:"expire_days,omitempty"`
}

type serviceConfigService struct {
	Port    string               `json:"port,omitempty"`
	JWTKey  string               `json:"jwt_key,omitempty"`
	Session serviceConfigSession `json:"session,omitempty"`
}

type serviceConfigCollections struct {
	Products  string `json:"products,omitempty"`
	Favorites string `json:"favorites,omitempty"`
}

type serviceConfigMongo struct {
	URI         string                   `json:"uri,omitempty"`
	Database    string                   `json:"database,omitempty"`
	Collections serviceConfigCollections `json:"collections,omitempty"`
	SearchIndex string                   `json:"search_index,omitempty"`
	ConnTimeout string                   `json:"conn_timeout,omitempty"`
	ReadTimeout string                   `json:"read_timeout,omitempty"`
	ResultLimit int                      `json:"result_limit,omitempty"`
	FacetLimit  int                      `json:"facet_limit,omitempty"`
}

type serviceConfig struct {
	Service serviceConfigService `json:"service,omitempty"`
	Mongo   serviceConfigMongo   `json:"mongo,omitempty"`
}

func getSortedJSONEnvVars() []string {
	var keys []string

	for _, keyval := range os.Environ() {
		key := strings.Split(keyval, "=")[0]
		if strings.HasPrefix(key, "CATALOG_SEARCH_WS_JSON_") {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys
}

func loadConfig() *serviceConfig {
	cfg := serviceConfig{}

	// json configs

	envs := getSortedJSONEnvVars()

	valid := true

	for _, env := range envs {
		log.Printf("[CONFIG] loading %s ...", env)
		if val := os.Getenv(env); val != "" {
			dec := json.NewDecoder(bytes.NewReader([]byte(val)))
			dec.DisallowUnknownFields()

			if err := dec.Decode(&cfg); err != nil {
				log.Printf("error decoding %s: %s", env, err.Error())
				valid = false
			}
		}
	}

	if valid == false {
		log.Printf("exiting due to json decode error(s) above")
		os.Exit(1)
	}

	// optional convenience overrides to simplify deployment config
	if uri := os.Getenv("CATALOG_SEARCH_WS_MONGO_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}

	if key := os.Getenv("CATALOG_SEARCH_WS_JWT_KEY"); key != "" {
		cfg.Service.JWTKey = key
	}

	// defaults for optional values

	if cfg.Service.Session.CookieName == "" {
		cfg.Service.Session.CookieName = "session"
	}

	if cfg.Service.Session.ExpireDays <= 0 {
		cfg.Service.Session.ExpireDays = 5
	}

	if cfg.Mongo.ResultLimit <= 0 {
		cfg.Mongo.ResultLimit = 60
	}

	if cfg.Mongo.FacetLimit <= 0 {
		cfg.Mongo.FacetLimit = 20
	}

	bytes, err := json.Marshal(cfg)
	if err != nil {
		log.Printf("error encoding service config json: %s", err.Error())
		os.Exit(1)
	}

	log.Printf("[CONFIG] composite json:")
	log.Printf("\n%s", string(bytes))

	return &cfg
}
