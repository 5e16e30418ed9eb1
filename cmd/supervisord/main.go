// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// supervisord program
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/aamcrae/polargraph/config"
	"github.com/aamcrae/polargraph/supervisor"
)

var configFile = flag.String("config", "", "Configuration file")
var port = flag.Int("port", 8090, "Web server port number")

func main() {
	flag.Parse()
	conf, err := config.LoadSupervisor(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}

	client := supervisor.NewClient(conf.DeviceURL, conf.RequestTimeout)
	sup := supervisor.New(client, supervisor.Config{
		BatchSize:      conf.BatchSize,
		RequestTimeout: conf.RequestTimeout,
		PollInterval:   conf.PollInterval,
		PollTimeout:    conf.PollTimeout,
		StaleAfter:     conf.StaleAfter,
		MaxRetries:     uint64(conf.MaxRetries),
	})
	defer sup.Close()

	srv := supervisor.NewServer(sup)
	log.Printf("supervisord listening on :%d, device at %s", *port, conf.DeviceURL)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", *port), srv))
}
