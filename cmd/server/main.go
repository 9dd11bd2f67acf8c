package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log"
	"net"

	"golang.org/x/sync/errgroup"

	"kestrel/internal/blobstorage"
	"kestrel/internal/conf"
	"kestrel/internal/directory"
	"kestrel/internal/imap"
	"kestrel/internal/server"
	"kestrel/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults to the standard search paths)")
	dbPath := flag.String("db", "", "Path to database directory (overrides config)")
	flag.Parse()

	log.Println("Starting Kestrel IMAP server...")

	var cfg *conf.Config
	var err error
	if *configPath != "" {
		cfg, err = conf.LoadConfigFile(*configPath)
	} else {
		cfg, err = conf.LoadConfig()
	}
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if *dbPath != "" {
		cfg.DatabaseDir = *dbPath
	}

	mgr, err := store.NewManager(cfg.DatabaseDir)
	if err != nil {
		log.Fatal("Failed to initialize database manager:", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Printf("Error closing database manager: %v", err)
		}
	}()
	log.Printf("Database manager initialized: %s", cfg.DatabaseDir)

	// S3 blob storage is optional: with it, message bodies are offloaded
	// to the object store and SQLite keeps only the key.
	var blobs store.BlobStore
	if cfg.BlobStorage.Enabled {
		log.Println("Initializing S3 blob storage...")
		s3Storage, err := blobstorage.NewS3BlobStorage(cfg.BlobStorage)
		if err != nil {
			log.Printf("Warning: Failed to initialize S3 blob storage: %v", err)
			log.Println("Falling back to local SQLite storage")
		} else {
			log.Printf("S3 blob storage initialized: %s (bucket: %s)", cfg.BlobStorage.Endpoint, cfg.BlobStorage.Bucket)
			blobs = s3Storage
		}
	} else {
		log.Println("S3 blob storage is disabled in config, using local SQLite storage")
	}

	st := store.New(mgr, blobs)
	dir := directory.New(mgr.SharedDB(), cfg.TokenSecret)
	engine := imap.NewEngine(st, imap.NewRegistry(st), dir)
	imapServer := server.NewIMAPServer(engine)

	g, _ := errgroup.WithContext(context.Background())

	g.Go(func() error {
		ln, err := net.Listen("tcp", cfg.ListenAddr) // #nosec G102 -- Intentionally binding to all interfaces for IMAP server
		if err != nil {
			return err
		}
		defer ln.Close()

		log.Printf("Kestrel IMAP server running on %s", cfg.ListenAddr)
		return acceptLoop(ln, imapServer)
	})

	if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
		g.Go(func() error {
			cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
			if err != nil {
				return err
			}
			tlsConfig := &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}

			ln, err := tls.Listen("tcp", cfg.TLSAddr, tlsConfig) // #nosec G102 -- Intentionally binding to all interfaces for IMAPS server
			if err != nil {
				return err
			}
			defer ln.Close()

			log.Printf("Kestrel IMAPS server running on %s", cfg.TLSAddr)
			return acceptLoop(ln, imapServer)
		})
	} else {
		log.Println("TLS certificate paths not configured, IMAPS listener disabled")
	}

	if err := g.Wait(); err != nil {
		log.Fatal("Server error:", err)
	}
}

func acceptLoop(ln net.Listener, srv *server.IMAPServer) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}

		log.Printf("New connection from: %s", conn.RemoteAddr())
		go srv.HandleConnection(conn)
	}
}
