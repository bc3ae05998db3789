package cmd

import (
	"io"

	"github.com/koverse/kdp/http"
	"github.com/spf13/cobra"
)

// HTTPMain is wrapped by NewHTTPCommand and only exported for testing purposes.
var HTTPMain *http.Main

// NewHTTPCommand returns a new cobra command wrapping HTTPMain.
func NewHTTPCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	HTTPMain = http.NewMain()
	com := newIngestCommand("write-http", "listen for json objects posted over http and write them to a dataset", HTTPMain)
	com.Long = `Each POST body may hold any number of json objects. The response is
sent once every object in it has been queued for writing. The command
stops after max-records records or once idle-timeout passes without any.`
	return com
}

func init() {
	subcommandFns["write-http"] = NewHTTPCommand
}
