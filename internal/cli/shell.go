package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophstore/internal/blobstore"
	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
	"github.com/dmitrijs2005/gophstore/internal/search"
	"github.com/dmitrijs2005/gophstore/internal/snapshot"
	"github.com/dmitrijs2005/gophstore/internal/store"
	"github.com/dmitrijs2005/gophstore/internal/syncx"
	"github.com/spf13/cobra"
)

const shellHelp = `Available commands:
  set <key> <value>            store a value (JSON or text) in the unified store
  get <key>                    read a value
  del <key>                    delete a value
  keys                         list store keys
  put <collection> <json>      write a document
  doc <collection> <id>        show a document
  rm <collection> <id>         delete a document
  find <query>                 full-text search
  index                        rebuild the search index
  blob <file> [raw]            store a file as a blob
  url <blob-id> [thumb]        get a handle for a blob
  pending [collection]         list unsynced changes
  sync <collection> <file>     reconcile with remote documents from a JSON file
  unlock | lock                open or close secure storage
  secret set|get|del|keys ...  encrypted key/value entries
  export <path> | import <path> [mode]
  help | exit`

func newShellCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh := &Shell{
				app:    app,
				reader: bufio.NewReader(cmd.InOrStdin()),
				out:    cmd.OutOrStdout(),
			}
			sh.println("Welcome to gophstore (type 'help' for commands)")
			sh.Run(cmd.Context())
			return nil
		},
	}
}

// Shell is the read-eval-print loop over one engine.
type Shell struct {
	app    *App
	reader *bufio.Reader
	out    io.Writer
}

func (s *Shell) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Shell) printJSON(v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.println("error:", err)
		return
	}
	s.println(string(raw))
}

func (s *Shell) status() string {
	if s.app.eng.Secure.IsUnlocked() {
		return "(unlocked)"
	}
	return ""
}

// Run reads commands until EOF or exit. Command errors are printed and
// never end the loop.
func (s *Shell) Run(ctx context.Context) {
	for {
		fmt.Fprintf(s.out, "gs%s> ", s.status())
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			s.println()
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd, args := parts[0], parts[1:]
		if cmd == "exit" || cmd == "quit" {
			s.println("Bye!")
			return
		}

		if err := s.exec(ctx, cmd, args, line); err != nil {
			s.println("error:", err)
		}
	}
}

func usage(u string) error {
	return fmt.Errorf("usage: %s", u)
}

// rest returns the input after the first n fields, keeping inner spaces.
func rest(line string, n int) string {
	s := strings.TrimSpace(line)
	for range n {
		i := strings.IndexAny(s, " \t")
		if i < 0 {
			return ""
		}
		s = strings.TrimLeft(s[i:], " \t")
	}
	return s
}

func parseValue(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}

func (s *Shell) exec(ctx context.Context, cmd string, args []string, line string) error {
	eng := s.app.eng

	switch cmd {
	case "help":
		s.println(shellHelp)

	case "set":
		if len(args) < 2 {
			return usage("set <key> <value>")
		}
		return eng.Store.Set(ctx, args[0], parseValue(rest(line, 2)))

	case "get":
		if len(args) != 1 {
			return usage("get <key>")
		}
		var v any
		switch st := eng.Store.Get(ctx, args[0], &v); st {
		case store.StatusHit:
			s.printJSON(v)
		default:
			s.println("(" + st.String() + ")")
		}

	case "del":
		if len(args) != 1 {
			return usage("del <key>")
		}
		return eng.Store.Delete(ctx, args[0])

	case "keys":
		for _, k := range eng.Store.Keys(ctx) {
			s.println(k)
		}

	case "put":
		if len(args) < 2 {
			return usage("put <collection> <json>")
		}
		doc, err := localdb.FromValue(parseValue(rest(line, 2)))
		if err != nil {
			return err
		}
		saved, err := eng.PutDocument(ctx, args[0], doc)
		if err != nil {
			return err
		}
		s.println(saved.ID())

	case "doc":
		if len(args) != 2 {
			return usage("doc <collection> <id>")
		}
		doc, err := eng.GetDocument(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		s.printJSON(doc)

	case "rm":
		if len(args) != 2 {
			return usage("rm <collection> <id>")
		}
		return eng.DeleteDocument(ctx, args[0], args[1])

	case "find":
		if len(args) == 0 {
			return usage("find <query>")
		}
		return s.app.search(ctx, s.out, rest(line, 1), search.Options{})

	case "index":
		n, err := eng.Reindex(ctx)
		if err != nil {
			return err
		}
		s.println("reindexed", n)

	case "blob":
		return s.blob(ctx, args)

	case "url":
		if len(args) < 1 {
			return usage("url <blob-id> [thumb]")
		}
		u, err := eng.Blobs.GetURL(ctx, args[0], len(args) > 1 && args[1] == "thumb")
		if err != nil {
			return err
		}
		s.println(u)

	case "pending":
		collection := ""
		if len(args) > 0 {
			collection = args[0]
		}
		recs, err := eng.Sync.GetPendingChanges(ctx, collection)
		if err != nil {
			return err
		}
		for _, r := range recs {
			s.println(r.Version, r.Collection, r.DocID, string(r.Operation))
		}

	case "sync":
		return s.sync(ctx, args)

	case "unlock":
		pw, err := GetPassword(s.reader, s.out)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(pw)
		return eng.Secure.Unlock(ctx, string(pw))

	case "lock":
		eng.Secure.Lock()

	case "secret":
		return s.secret(ctx, args, line)

	case "export":
		if len(args) != 1 {
			return usage("export <path>")
		}
		return s.app.export(ctx, s.out, args[0], exportFlags{blobs: true})

	case "import":
		if len(args) < 1 {
			return usage("import <path> [skip|overwrite|merge]")
		}
		mode := ""
		if len(args) > 1 {
			mode = args[1]
		}
		m, err := snapshot.ParseMode(mode)
		if err != nil {
			return err
		}
		return s.app.importSnapshot(ctx, s.out, args[0], m, false)

	default:
		s.println("Unknown command:", cmd)
	}
	return nil
}

func (s *Shell) blob(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("blob <file> [raw]")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	process := len(args) < 2 || args[1] != "raw"
	m, err := s.app.eng.Blobs.Store(ctx, data, filepath.Base(args[0]), blobstore.Options{
		Compress:          process,
		GenerateThumbnail: process,
	})
	if err != nil {
		return err
	}
	s.println(m.ID, m.MimeType, m.StoredSize())
	return nil
}

func (s *Shell) sync(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("sync <collection> <file> [strategy]")
	}
	raw, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	var remote []localdb.Document
	if err := json.Unmarshal(raw, &remote); err != nil {
		return fmt.Errorf("%w: remote file must hold a JSON array of documents", common.ErrorValidation)
	}

	var strategy syncx.Strategy
	if len(args) > 2 {
		strategy = syncx.Strategy(args[2])
	}

	res, err := s.app.eng.Sync.Sync(ctx, args[0], remote, strategy)
	if err != nil {
		return err
	}
	s.println("synced", res.Synced, "conflicts", len(res.Conflicts), "errors", len(res.Errors), "to push", len(res.Push), "resolved", len(res.Resolved))
	for _, e := range res.Errors {
		s.println(" ", e.DocID+":", e.Err)
	}
	return nil
}

func (s *Shell) secret(ctx context.Context, args []string, line string) error {
	sec := s.app.eng.Secure
	if len(args) == 0 {
		return usage("secret set|get|del|keys ...")
	}

	switch args[0] {
	case "set":
		if len(args) < 3 {
			return usage("secret set <key> <value>")
		}
		return sec.Set(ctx, args[1], parseValue(rest(line, 3)))
	case "get":
		if len(args) != 2 {
			return usage("secret get <key>")
		}
		var v any
		if !sec.Get(ctx, args[1], &v) {
			if !sec.IsUnlocked() {
				return common.ErrorLocked
			}
			s.println("(miss)")
			return nil
		}
		s.printJSON(v)
	case "del":
		if len(args) != 2 {
			return usage("secret del <key>")
		}
		return sec.Delete(ctx, args[1])
	case "keys":
		keys, err := sec.Keys(ctx)
		if err != nil {
			return err
		}
		for _, k := range keys {
			s.println(k)
		}
	default:
		return errors.New("unknown secret command " + args[0])
	}
	return nil
}
