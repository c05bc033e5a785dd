package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Prompter reads answers line by line from in and writes questions to out.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	passFd int
}

// NewPrompter builds a Prompter. When in is a terminal, passwords are read
// without echo.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, passFd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.passFd = int(f.Fd())
	}
	return p
}

func (p *Prompter) readLine() (string, error) {
	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	// Trim whitespace to handle copy-paste issues
	return strings.TrimSpace(input), nil
}

// String prompts for a string value with a default
func (p *Prompter) String(prompt, defaultValue string) string {
	if defaultValue != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Fprintf(p.out, "%s: ", prompt)
	}

	input, err := p.readLine()
	if err != nil || input == "" {
		return defaultValue
	}
	return input
}

// Password prompts for a secret without showing a default
func (p *Prompter) Password(prompt string) string {
	fmt.Fprintf(p.out, "%s: ", prompt)

	if p.passFd >= 0 {
		secret, err := term.ReadPassword(p.passFd)
		fmt.Fprintln(p.out)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(secret))
	}

	input, err := p.readLine()
	if err != nil {
		return ""
	}
	return input
}

// Bool prompts for a yes/no answer with a default
func (p *Prompter) Bool(prompt string, defaultValue bool) bool {
	for {
		if defaultValue {
			fmt.Fprintf(p.out, "%s [Y/n]: ", prompt)
		} else {
			fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
		}

		input, err := p.readLine()
		if err != nil {
			return defaultValue
		}

		switch strings.ToLower(input) {
		case "":
			return defaultValue
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			fmt.Fprintln(p.out, "Please enter 'y' or 'n'.")
		}
	}
}

func (p *Prompter) WaitForEnter(message string) {
	fmt.Fprint(p.out, message)
	_, _ = p.readLine()
}

const appPasswordGuide = `
1. Log in to your WordPress admin panel at yoursite.com/wp-admin
2. Navigate to Users → Profile (or Users → Your Profile)
3. Scroll down to the 'Application Passwords' section
   - If you don't see this section, ask your admin to enable it or check if your hosting provider supports it
   - You may need to enable two-factor authentication first on some installations

4. Under 'Add New Application Password':
   - Enter a name for this application (e.g., 'Content Migration Tool')
   - Click 'Add New'

5. WordPress will generate a password that looks like: xxxx xxxx xxxx xxxx
   - Copy this password immediately
   - You won't be able to see it again after closing the window

6. Important Settings to Check:
   - Ensure the REST API is enabled in WordPress
   - Verify your user has administrator privileges
   - Check that your hosting provider allows REST API access
`

const commonIssues = `• If you get 401 errors: Verify your username and application password
• If you get 403 errors: Check your user permissions and REST API settings
• If the Application Passwords section is missing:
  - Add this to wp-config.php: define('WP_REST_APPLICATION_PASSWORD_ENABLED', true);
  - Or update to WordPress 5.6 or later
`

const requirementsChecklist = `□ WordPress 5.6 or later installed
□ Administrator account access
□ REST API enabled
□ Application Passwords enabled
`

// InteractiveConfig starts from the environment defaults and asks for the two
// site URLs, the username and the application password. Values already set
// through WP_APP_PASSWORD are not prompted for again.
func InteractiveConfig(p *Prompter) *Config {
	cfg := New()
	out := p.out

	fmt.Fprintln(out, color.New(color.Bold, color.FgGreen).Sprint("=== WordPress Content Migration Tool ==="))
	fmt.Fprintln(out, "This tool will migrate ALL published posts between WordPress sites.")
	fmt.Fprintln(out)

	cfg.Source.URL = NormalizeURL(p.String("Source WordPress site URL", cfg.Source.URL))
	cfg.Destination.URL = NormalizeURL(p.String("Destination WordPress site URL", cfg.Destination.URL))
	cfg.Destination.Username = p.String("Destination WordPress username", cfg.Destination.Username)

	if cfg.Destination.AppPassword != "" {
		fmt.Fprintln(out, "Application password: ********** (from environment)")
		return cfg
	}

	printAppPasswordHelp(out)
	p.WaitForEnter("\nPress Enter when you have your application password ready...")
	cfg.Destination.AppPassword = p.Password("WordPress application password")

	return cfg
}

func printAppPasswordHelp(out io.Writer) {
	fmt.Fprintln(out, "\n"+color.New(color.Bold, color.FgCyan).Sprint("How to generate a WordPress Application Password:"))
	fmt.Fprint(out, appPasswordGuide)
	fmt.Fprintln(out, "\n"+color.YellowString("Common Issues:"))
	fmt.Fprint(out, commonIssues)
	fmt.Fprintln(out, "\n"+color.New(color.Bold, color.FgGreen).Sprint("Requirements Checklist:"))
	fmt.Fprint(out, requirementsChecklist)
}

// ReportStatus prints a ✓ or ✗ line for a check performed on behalf of the user.
func ReportStatus(out io.Writer, message string, err error) {
	if err != nil {
		fmt.Fprintf(out, "%s %s: %v\n", color.RedString("✗"), message, err)
		return
	}
	fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), message)
}
