/******************************************************************************
 *
 *  Description :
 *
 *  Setup & initialization.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"runtime"

	gh "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	jcr "github.com/tinode/jsonco"

	"github.com/parley-im/parley/server/concurrency"
	_ "github.com/parley-im/parley/server/db/mysql"
	"github.com/parley-im/parley/server/logs"
	"github.com/parley-im/parley/server/store"
)

const (
	// currentVersion is the current API/protocol version.
	currentVersion = "0.1"
	// minSupportedVersion is the minimum supported API version.
	minSupportedVersion = "0.1"

	// Size of the shared pool of background store workers.
	numTaskWorkers = 16

	// Base URL path for serving the streaming API.
	defaultApiPath = "/"
)

// Build timestamp set by the compiler:
// -ldflags "-X main.buildstamp=`date -u '+%Y%m%dT%H:%M:%SZ'`"
var buildstamp = "undef"

var globals struct {
	// Room-and-session hub.
	hub *Hub
	// Live sessions.
	sessionStore *SessionStore
	// Shared pool for store roundtrips scheduled off network loops.
	taskPool *concurrency.GoRoutinePool
	// Channel for async stats updates.
	statsUpdate chan *varUpdate
	// Maximum message size allowed from the clients, bytes.
	maxMessageSize int64
	// Strict-Transport-Security value, empty if TLS is not configured.
	tlsStrictMaxAge string
}

type configType struct {
	// HTTP(S) address:port to listen on.
	Listen string `json:"listen"`
	// URL path for exposing runtime stats, disabled if empty or "-".
	ExpvarPath string `json:"expvar"`
	// Maximum message size allowed from client, bytes.
	MaxMessageSize int `json:"max_message_size"`
	// Configs for subsystems.
	Store json.RawMessage `json:"store_config"`
	TLS   json.RawMessage `json:"tls"`
	// Worker id to use in snowflake id generation, 0..1023.
	WorkerID int `json:"worker_id"`
}

func main() {
	logs.Init(os.Stderr, "stdFlags")

	executable, _ := os.Executable()
	logs.Info.Printf("Server v%s:%s; pid %d; %d process(es)",
		currentVersion, buildstamp, os.Getpid(), runtime.GOMAXPROCS(runtime.NumCPU()))

	var configfile = flag.String("config", "parley.conf", "Path to config file.")
	var listenOn = flag.String("listen", "", "Override address and port to listen on.")
	var expvarPath = flag.String("expvar", "", "Override the path where runtime stats are exposed.")
	var initDb = flag.Bool("init_db", false, "Initialize the database and exit.")
	var reset = flag.Bool("reset_db", false, "Drop the database if it exists and recreate it.")
	var pprofUrl = flag.String("pprof_url", "", "Debugging only! URL path for exposing profiling info. Disabled if not set.")
	flag.Parse()

	logs.Info.Printf("Using config from '%s', executable '%s'", *configfile, executable)

	var config configType
	if file, err := os.Open(*configfile); err != nil {
		logs.Err.Fatal("Failed to read config file: ", err)
	} else {
		jr := jcr.New(file)
		if err = json.NewDecoder(jr).Decode(&config); err != nil {
			switch jerr := err.(type) {
			case *json.UnmarshalTypeError:
				lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
				logs.Err.Fatalf("Unmarshall error in config file in %s at %d:%d (offset %d bytes): %s",
					jerr.Field, lnum, cnum, jerr.Offset, jerr.Error())
			case *json.SyntaxError:
				lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
				logs.Err.Fatalf("Syntax error in config file at %d:%d (offset %d bytes): %s",
					lnum, cnum, jerr.Offset, jerr.Error())
			default:
				logs.Err.Fatal("Failed to parse config file: ", err)
			}
		}
		file.Close()
	}

	if *listenOn != "" {
		config.Listen = *listenOn
	}
	if *expvarPath != "" {
		config.ExpvarPath = *expvarPath
	}

	if *initDb || *reset {
		if err := store.InitDb(config.Store, *reset); err != nil {
			logs.Err.Fatal("Failed to initialize the database: ", err)
		}
		logs.Info.Println("Database successfully initialized")
		return
	}

	if err := store.Open(config.WorkerID, config.Store); err != nil {
		logs.Err.Fatal("Failed to connect to DB: ", err)
	}
	logs.Info.Println("DB adapter:", store.GetAdapterName())
	defer func() {
		store.Close()
		logs.Info.Println("Closed database connection(s)")
		logs.Info.Println("All done, good bye")
	}()
	statsRegisterDbStats()

	globals.maxMessageSize = int64(config.MaxMessageSize)
	if globals.maxMessageSize <= 0 {
		globals.maxMessageSize = 1 << 19 // 512K
	}

	globals.taskPool = concurrency.NewGoRoutinePool(numTaskWorkers)
	defer globals.taskPool.Stop()

	globals.sessionStore = NewSessionStore()

	stdmux := http.NewServeMux()
	statsInit(stdmux, config.ExpvarPath)
	servePprof(stdmux, *pprofUrl)
	statsRegisterInt("Version")
	statsSet("Version", int64(parseVersion(currentVersion)))

	// The hub is created after stats are initialized: it registers counters.
	globals.hub = newHub()
	defer statsShutdown()

	router := mux.NewRouter()
	// Websocket clients.
	router.HandleFunc("/v0/channels", serveWebSocket)
	// REST API.
	setupAPIRoutes(router)
	router.NotFoundHandler = http.HandlerFunc(serve404)

	stdmux.Handle(defaultApiPath,
		gh.CombinedLoggingHandler(os.Stdout, gh.CompressHandler(hstsHandler(router))))

	if err := listenAndServe(config.Listen, stdmux, config.TLS, signalHandler()); err != nil {
		logs.Err.Fatal(err)
	}
}

// statsRegisterDbStats exposes the adapter's connection pool counters.
func statsRegisterDbStats() {
	if f := store.DbStats(); f != nil {
		statsRegisterDbCallback(f)
	}
}
