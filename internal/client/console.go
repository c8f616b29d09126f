package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const defaultK = 5

const menu = `Available commands:
1. upload - Upload a document
2. list - List all documents
3. search - Search documents
4. similar - Find similar documents
5. delete - Delete a document
6. stats - Show statistics
7. quit - Exit`

const helpText = `Commands:
  upload    Upload and process a document (pdf, txt, docx, xlsx)
  list      List all processed documents
  search    Search documents using semantic search
  similar   Find documents similar to a given document
  delete    Delete a document and all its chunks
  stats     Show vector store statistics
  help      Show this help message
  quit      Exit the application`

// Console 是交互式命令行界面，输入输出可替换以便测试。
type Console struct {
	api     *Client
	in      *bufio.Scanner
	out     io.Writer
	allowed []string
}

// NewConsole 创建一个控制台。
func NewConsole(api *Client, in io.Reader, out io.Writer) *Console {
	return &Console{
		api:     api,
		in:      bufio.NewScanner(in),
		out:     out,
		allowed: DefaultExtensions,
	}
}

func (c *Console) println(a ...interface{}) {
	fmt.Fprintln(c.out, a...)
}

// prompt 输出提示并读取一行，输入结束时返回 false。
func (c *Console) prompt(label string) (string, bool) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *Console) promptK() (int, bool) {
	raw, ok := c.prompt(fmt.Sprintf("Number of results (default %d): ", defaultK))
	if !ok {
		return 0, false
	}
	if raw == "" {
		return defaultK, true
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k <= 0 {
		c.println(fmt.Sprintf("Invalid input, using default: %d", defaultK))
		return defaultK, true
	}
	return k, true
}

// Run 先检查服务连通性，然后进入命令循环直到 quit 或输入结束。
func (c *Console) Run(ctx context.Context) error {
	c.println("=== DocVector Client ===")
	c.println("Checking server connection...")
	if _, err := c.api.Health(ctx); err != nil {
		c.println("Server connection failed: " + err.Error())
		return err
	}
	c.println("Server is running!")
	c.println()
	c.println(menu)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		command, ok := c.prompt("\nEnter command: ")
		if !ok {
			c.println("\nGoodbye!")
			return nil
		}
		switch strings.ToLower(command) {
		case "":
			continue
		case "quit", "q", "exit", "7":
			c.println("Goodbye!")
			return nil
		case "help", "h", "?":
			c.println(helpText)
		case "upload", "1":
			c.upload(ctx)
		case "list", "2":
			c.list(ctx)
		case "search", "3":
			c.search(ctx)
		case "similar", "4":
			c.similar(ctx)
		case "delete", "5":
			c.delete(ctx)
		case "stats", "6":
			c.stats(ctx)
		default:
			c.println("Unknown command. Type 'help' for a list of commands or 'quit' to exit.")
		}
	}
}

func (c *Console) upload(ctx context.Context) {
	path, ok := c.prompt("Enter file path: ")
	if !ok || path == "" {
		c.println("No file path given.")
		return
	}
	if err := ValidateFileType(path, c.allowed); err != nil {
		c.println(FormatError(err))
		return
	}
	res, err := c.api.Upload(ctx, path, nil)
	if err != nil {
		c.println(FormatError(err))
		return
	}
	c.println(FormatUpload(res))
}

func (c *Console) list(ctx context.Context) {
	res, err := c.api.List(ctx)
	if err != nil {
		c.println(FormatError(err))
		return
	}
	c.println(FormatDocuments(res))
}

func (c *Console) search(ctx context.Context) {
	query, ok := c.prompt("Enter search query: ")
	if !ok {
		return
	}
	k, ok := c.promptK()
	if !ok {
		return
	}
	res, err := c.api.Search(ctx, query, k, nil)
	if err != nil {
		c.println(FormatError(err))
		return
	}
	c.println(FormatSearch(res))
}

func (c *Console) similar(ctx context.Context) {
	docID, ok := c.prompt("Enter document ID: ")
	if !ok {
		return
	}
	k, ok := c.promptK()
	if !ok {
		return
	}
	res, err := c.api.Similar(ctx, docID, k)
	if err != nil {
		c.println(FormatError(err))
		return
	}
	c.println(FormatSimilar(res))
}

func (c *Console) delete(ctx context.Context) {
	docID, ok := c.prompt("Enter document ID to delete: ")
	if !ok || docID == "" {
		c.println("No document ID given.")
		return
	}
	confirm, ok := c.prompt(fmt.Sprintf("Are you sure you want to delete %s? (y/N): ", docID))
	if !ok {
		return
	}
	if !Confirmed(confirm) {
		c.println("Delete cancelled.")
		return
	}
	if err := c.api.Delete(ctx, docID); err != nil {
		c.println(FormatError(err))
		return
	}
	c.println(fmt.Sprintf("Document %s deleted.", docID))
}

func (c *Console) stats(ctx context.Context) {
	res, err := c.api.Stats(ctx)
	if err != nil {
		c.println(FormatError(err))
		return
	}
	c.println(FormatStats(res))
}

// Confirmed 判断用户是否确认操作。
func Confirmed(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
