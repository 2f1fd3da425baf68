package viz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
)

// compiledTemplate is parsed at init time to fail fast on template errors.
var compiledTemplate *template.Template

func init() {
	compiledTemplate = template.Must(template.New("viz").Parse(htmlTemplate))
}

// HTMLOptions configures HTML generation.
type HTMLOptions struct {
	Title    string
	Distance string // "value" or "fixed"
}

// DefaultOptions returns default HTML generation options.
func DefaultOptions() HTMLOptions {
	return HTMLOptions{
		Title:    "Co-purchase graph",
		Distance: "value",
	}
}

// ValidDistances lists the supported link distance modes.
var ValidDistances = []string{"value", "fixed"}

// GenerateHTML generates a self-contained page rendering the document with d3-force.
func GenerateHTML(doc *Document, opts HTMLOptions) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("document cannot be nil")
	}

	if err := validateDistance(opts.Distance); err != nil {
		return "", err
	}

	if doc.IsEmpty() {
		return generateEmptyHTML(), nil
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding graph document: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = DefaultOptions().Title
	}

	data := templateData{
		Title:     title,
		GraphJSON: template.JS(docJSON),
		ByValue:   opts.Distance != "fixed",
	}

	var buf bytes.Buffer
	if err := compiledTemplate.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// validateDistance checks if the distance option is valid.
func validateDistance(distance string) error {
	switch distance {
	case "", "value", "fixed":
		return nil
	default:
		return fmt.Errorf("invalid distance %q: must be value or fixed", distance)
	}
}

// templateData holds data for the HTML template.
type templateData struct {
	Title     string
	GraphJSON template.JS
	ByValue   bool
}

// generateEmptyHTML returns HTML for an empty graph state.
func generateEmptyHTML() string {
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Co-purchase graph - Empty</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      display: flex;
      justify-content: center;
      align-items: center;
      height: 100vh;
      margin: 0;
      background: #f5f5f5;
    }
    .empty-state {
      text-align: center;
      color: #666;
    }
    .empty-state code {
      background: #e0e0e0;
      padding: 2px 6px;
      border-radius: 3px;
    }
  </style>
</head>
<body>
  <div class="empty-state">
    <h2>No graph data</h2>
    <p>The document has no nodes.</p>
    <p>Rebuild it with <code>cobuy build</code></p>
  </div>
</body>
</html>`
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <script src="https://d3js.org/d3.v7.min.js"></script>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      margin: 0;
      padding: 0;
      background: white;
      overflow: hidden;
    }
    #legend {
      position: absolute;
      top: 8px;
      left: 8px;
      font-size: 12px;
      background: rgba(255,255,255,0.85);
      padding: 6px 10px;
      border-radius: 4px;
      max-height: 90vh;
      overflow-y: auto;
    }
    #legend .swatch {
      display: inline-block;
      width: 10px;
      height: 10px;
      margin-right: 6px;
      border-radius: 50%;
    }
    text.label {
      font-size: 8px;
      font-weight: bold;
      pointer-events: none;
    }
  </style>
</head>
<body>
  <svg id="graph"></svg>
  <div id="legend"></div>
  <script>
    (function() {
      const data = {{.GraphJSON}};
      const byValue = {{.ByValue}};
      const s = data.settings;
      const width = window.innerWidth;
      const height = window.innerHeight;
      const color = d3.scaleOrdinal(d3.schemeCategory10);

      const svg = d3.select('#graph').attr('width', width).attr('height', height);
      const g = svg.append('g');
      svg.call(d3.zoom().on('zoom', function(event) {
        g.attr('transform', event.transform);
      }));

      const link = g.append('g')
        .selectAll('line')
        .data(data.links)
        .enter().append('line')
        .attr('stroke', '#222222')
        .attr('stroke-width', function(d) { return Math.max(1, Math.sqrt(d.value)); })
        .style('opacity', s.link_opacity);

      const node = g.append('g')
        .selectAll('g')
        .data(data.nodes)
        .enter().append('g');

      node.append('circle')
        .attr('r', s.node_radius)
        .attr('fill', function(d) { return color(d.group); })
        .on('click', function(event, d) { select(d.id); });

      node.append('title').text(function(d) { return d.id + ' (' + d.group + ')'; });

      const linkForce = d3.forceLink(data.links)
        .id(function(d) { return d.id; })
        .strength(s.attraction_strength_weak);
      if (byValue) {
        linkForce.distance(function(d) { return d.value; });
      }

      const simulation = d3.forceSimulation(data.nodes)
        .force('link', linkForce)
        .force('charge', d3.forceManyBody().strength(s.repulsion_strength_weak))
        .force('center', d3.forceCenter(width / 2, height / 2))
        .on('tick', function() {
          link
            .attr('x1', function(d) { return d.source.x; })
            .attr('y1', function(d) { return d.source.y; })
            .attr('x2', function(d) { return d.target.x; })
            .attr('y2', function(d) { return d.target.y; });
          node.attr('transform', function(d) { return 'translate(' + d.x + ',' + d.y + ')'; });
        });

      let active = null;
      function select(id) {
        node.selectAll('text').remove();
        if (active === id) {
          active = null;
          linkForce.strength(s.attraction_strength_weak);
          simulation.force('charge').strength(s.repulsion_strength_weak);
          link.style('opacity', s.link_opacity);
          node.style('opacity', 1.0);
          return;
        }
        active = id;
        const adjacent = new Set([id]);
        link.style('opacity', function(l) {
          if (l.source.id === id || l.target.id === id) {
            adjacent.add(l.source.id);
            adjacent.add(l.target.id);
            return 0.8;
          }
          return s.link_opacity * 0.5;
        });
        node.style('opacity', function(n) { return adjacent.has(n.id) ? 1.0 : 0.3; });
        // Selected neighbourhood is pulled in tighter and pushes the rest away
        linkForce.strength(function(l) {
          return (l.source.id === id || l.target.id === id) ? s.attraction_strength : s.attraction_strength_weak;
        });
        simulation.force('charge').strength(function(n) {
          return n.id === id ? s.repulsion_strength : s.repulsion_strength_weak;
        });
        simulation.alpha(0.3).restart();
        node.filter(function(n) { return adjacent.has(n.id); })
          .append('text')
          .attr('class', 'label')
          .attr('x', 6)
          .attr('y', 3)
          .text(function(n) { return n.id; });
      }

      const counts = d3.rollups(data.nodes, function(v) { return v.length; }, function(d) { return d.group; })
        .sort(function(a, b) { return b[1] - a[1]; });
      const legend = d3.select('#legend');
      counts.forEach(function(entry) {
        const row = legend.append('div');
        row.append('span').attr('class', 'swatch').style('background', color(entry[0]));
        row.append('span').text(entry[0] + ' (' + entry[1] + ')');
      });
    })();
  </script>
</body>
</html>`
