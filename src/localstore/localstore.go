// Package localstore is a tiny S3 stand-in that keeps objects on disk, so the
// gallery can run locally without a real object store. It understands just
// enough of the protocol for the calls the storage package makes: create
// bucket, put, head and get. Signatures and presign parameters are ignored.
package localstore

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/illustory/gallery/src/logging"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/website"
	"github.com/spf13/cobra"
)

func init() {
	var addr string
	localstoreCommand := &cobra.Command{
		Use:   "localstore [storage folder]",
		Short: "Run a local s3 server that stores in the filesystem",
		Run: func(cmd *cobra.Command, args []string) {
			targetFolder := "./tmp"
			if len(args) > 0 {
				targetFolder = args[0]
			}
			err := os.MkdirAll(targetFolder, fs.ModePerm)
			if err != nil {
				panic(err)
			}

			logging.Info().Str("addr", addr).Str("folder", targetFolder).Msg("Serving local object store")
			err = http.ListenAndServe(addr, &Server{Root: targetFolder})
			if err != nil {
				logging.Fatal().Err(err).Msg("local object store stopped")
			}
		},
	}
	localstoreCommand.Flags().StringVar(&addr, "addr", ":9003", "Address to listen on")

	website.WebsiteCommand.AddCommand(localstoreCommand)
}

type Server struct {
	Root string
}

var _ http.Handler = &Server{}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key := bucketKey(r)
	logging.Debug().
		Str("method", r.Method).
		Str("bucket", bucket).
		Str("key", key).
		Msg("local object store request")

	if bucket == "" {
		writeError(w, http.StatusBadRequest, "InvalidBucketName", "no bucket in path")
		return
	}
	bucketDir := filepath.Join(s.Root, bucket)

	switch r.Method {
	case http.MethodPut:
		if key == "" {
			if err := os.MkdirAll(bucketDir, fs.ModePerm); err != nil {
				writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
				return
			}
			w.Header().Set("Location", fmt.Sprintf("/%s", bucket))
			w.WriteHeader(http.StatusOK)
			return
		}

		if !dirExists(bucketDir) {
			writeError(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
			return
		}
		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
			return
		}
		if err := os.WriteFile(filepath.Join(bucketDir, key), body, 0644); err != nil {
			writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		content, err := os.ReadFile(filepath.Join(bucketDir, key))
		if err != nil {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeError(w, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
			return
		}
		w.Header().Set("Content-Type", contentType(key, content))
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(content)
		}
	default:
		writeError(w, http.StatusNotImplemented, "NotImplemented", "unsupported method "+r.Method)
	}
}

// Splits a path-style request into bucket and key. Slashes in the key are
// flattened to '~' so every object is a single file in the bucket folder.
func bucketKey(r *http.Request) (string, string) {
	p := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, found := strings.Cut(p, "/")
	if !found {
		return bucket, ""
	}
	return bucket, strings.ReplaceAll(key, "/", "~")
}

func contentType(key string, content []byte) string {
	original := strings.ReplaceAll(key, "~", "/")
	if t := mime.TypeByExtension(path.Ext(original)); t != "" {
		return t
	}
	return http.DetectContentType(content)
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

func readBody(r *http.Request) ([]byte, error) {
	if strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
		return decodeAwsChunked(r.Body)
	}
	return io.ReadAll(r.Body)
}

// Streaming uploads wrap the payload as
//
//	<hex size>[;chunk-signature=...]\r\n<data>\r\n ... 0\r\n[trailers]\r\n
func decodeAwsChunked(body io.Reader) ([]byte, error) {
	br := bufio.NewReader(body)
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeStr, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeStr, 16, 64)
		if err != nil {
			return nil, oops.New(err, "bad chunk size %q", sizeStr)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, err
		}
		if _, err := br.Discard(2); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
}

type s3Error struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	w.Write([]byte(xml.Header))
	xml.NewEncoder(w).Encode(s3Error{Code: code, Message: message})
}
