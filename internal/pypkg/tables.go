package pypkg

// aliases maps informal names and import names to canonical distribution
// names. Lookup is two-pass: an exact case-sensitive match wins over a
// lowercase-normalized match.
var aliases = map[string]string{
	"cv2":          "opencv-python",
	"cv":           "opencv-python",
	"sklearn":      "scikit-learn",
	"PIL":          "pillow",
	"Image":        "pillow",
	"bs4":          "beautifulsoup4",
	"yaml":         "pyyaml",
	"dateutil":     "python-dateutil",
	"docx":         "python-docx",
	"pptx":         "python-pptx",
	"fitz":         "pymupdf",
	"OpenSSL":      "pyopenssl",
	"Crypto":       "pycryptodome",
	"skimage":      "scikit-image",
	"mpl_toolkits": "matplotlib",
	"pylab":        "matplotlib",
	"np":           "numpy",
	"pd":           "pandas",
	"plt":          "matplotlib",
	"torch":        "pytorch",
}

// prebuilt lists distributions shipped as compiled artifacts with the
// runtime; they are importable without installation.
var prebuilt = map[string]bool{
	"numpy":           true,
	"pandas":          true,
	"matplotlib":      true,
	"scipy":           true,
	"scikit-learn":    true,
	"scikit-image":    true,
	"statsmodels":     true,
	"sympy":           true,
	"networkx":        true,
	"pillow":          true,
	"opencv-python":   true,
	"lxml":            true,
	"beautifulsoup4":  true,
	"pyyaml":          true,
	"regex":           true,
	"msgpack":         true,
	"python-dateutil": true,
	"pytz":            true,
	"packaging":       true,
	"micropip":        true,
}

// incompatible lists distributions known to need OS facilities the sandbox
// cannot provide: native database clients, GPU-bound ML frameworks, and
// headless-browser automation.
var incompatible = map[string]string{
	"psycopg2":        "requires a native PostgreSQL client",
	"psycopg2-binary": "requires a native PostgreSQL client",
	"mysqlclient":     "requires a native MySQL client",
	"cx-oracle":       "requires a native Oracle client",
	"pyodbc":          "requires a native ODBC driver",
	"tensorflow":      "GPU-bound ML framework unavailable in the sandbox",
	"pytorch":         "GPU-bound ML framework unavailable in the sandbox",
	"jax":             "GPU-bound ML framework unavailable in the sandbox",
	"selenium":        "requires a browser driver",
	"playwright":      "requires a browser runtime",
	"pyppeteer":       "requires a browser runtime",
	"pyspark":         "requires a JVM",
	"pywin32":         "Windows-only",
}
