package pyworker

// pythonHarness is the long-lived guest-side program. It owns the worker end
// of the NDJSON protocol: one command per stdin line, one ready/progress/
// result event per stdout line.
//
// The protocol channel is a duplicate of the original stdout file
// descriptor; fd 1 itself is pointed at /dev/null so stray guest writes that
// bypass sys.stdout cannot corrupt the protocol stream.
//
// Per request it recreates the input/output directories (cleanup before use,
// so a killed prior request cannot poison this one), mounts the request
// files, installs packages, injects context globals, synthesizes sys.argv
// from the context map, redirects the standard streams, and traps SystemExit
// so a guest script calling sys.exit() cannot tear down the interpreter.
const pythonHarness = `
import ast
import base64
import io
import json
import os
import shutil
import subprocess
import sys
import traceback

WORKDIR = os.environ.get("RUNBOX_WORKDIR") or os.path.join("/tmp", "runbox")
INPUT_DIR = os.path.join(WORKDIR, "input")
OUTPUT_DIR = os.path.join(WORKDIR, "output")
PKG_DIR = os.path.join(WORKDIR, "packages")

PROTO = os.fdopen(os.dup(1), "w")
_devnull = os.open(os.devnull, os.O_WRONLY)
os.dup2(_devnull, 1)


def send(event):
    PROTO.write(json.dumps(event) + "\n")
    PROTO.flush()


def reset_dirs():
    # Torn down and recreated, not merely cleared: no residue from the
    # previous request may be visible.
    for d in (INPUT_DIR, OUTPUT_DIR):
        shutil.rmtree(d, ignore_errors=True)
        os.makedirs(d)


def mount_files(files):
    for f in files or []:
        rel = f.get("path", "").lstrip("/")
        if not rel:
            continue
        path = os.path.join(INPUT_DIR, rel)
        parent = os.path.dirname(path)
        if parent:
            os.makedirs(parent, exist_ok=True)
        if f.get("encoding") == "base64":
            with open(path, "wb") as fh:
                fh.write(base64.b64decode(f.get("content", "")))
        else:
            with open(path, "w") as fh:
                fh.write(f.get("content", ""))


def install_packages(cmd_id, packages):
    installed = []
    warnings = []
    for name in packages or []:
        send({"type": "progress", "id": cmd_id, "message": "installing package: " + name})
        proc = subprocess.run(
            [sys.executable, "-m", "pip", "install", "--quiet",
             "--disable-pip-version-check", "--target", PKG_DIR, name],
            capture_output=True, text=True)
        if proc.returncode == 0:
            installed.append(name)
        else:
            detail = proc.stderr.strip().splitlines()
            warnings.append("package install failed: %s: %s"
                            % (name, detail[-1] if detail else "unknown error"))
    if installed and PKG_DIR not in sys.path:
        sys.path.insert(0, PKG_DIR)
    return installed, warnings


def build_argv(context):
    # Context keys double as CLI flags so scripts using argparse work
    # unchanged: True emits a bare flag, False is omitted, anything else
    # emits "--key value". Underscores become hyphens.
    argv = ["script"]
    for key in sorted(context or {}):
        value = context[key]
        flag = "--" + str(key).replace("_", "-")
        if value is True:
            argv.append(flag)
        elif value is False:
            continue
        else:
            argv.append(flag)
            argv.append(str(value))
    return argv


def collect_output_files():
    out = []
    for root, _, names in os.walk(OUTPUT_DIR):
        for name in names:
            path = os.path.join(root, name)
            rel = os.path.relpath(path, OUTPUT_DIR)
            with open(path, "rb") as fh:
                raw = fh.read()
            try:
                out.append({"path": rel, "content": raw.decode("utf-8"),
                            "encoding": "text"})
            except UnicodeDecodeError:
                out.append({"path": rel,
                            "content": base64.b64encode(raw).decode("ascii"),
                            "encoding": "base64"})
    return out


def run(cmd):
    cmd_id = cmd.get("id", "")
    reset_dirs()
    mount_files(cmd.get("files"))
    installed, warnings = install_packages(cmd_id, cmd.get("packages"))
    send({"type": "progress", "id": cmd_id, "message": "running script"})

    stdout_buf = io.StringIO()
    stderr_buf = io.StringIO()
    for w in warnings:
        stderr_buf.write(w + "\n")

    scope = {"__name__": "__main__", "INPUT_DIR": INPUT_DIR, "OUTPUT_DIR": OUTPUT_DIR}
    scope.update(cmd.get("context") or {})

    old_argv = sys.argv
    old_stdout = sys.stdout
    old_stderr = sys.stderr
    old_cwd = os.getcwd()
    sys.argv = build_argv(cmd.get("context"))
    sys.stdout = stdout_buf
    sys.stderr = stderr_buf
    os.chdir(OUTPUT_DIR)

    value = None
    err_kind = None
    err_msg = None
    exit_code = None
    try:
        tree = ast.parse(cmd.get("code", ""), "<script>", "exec")
        trailing = None
        if tree.body and isinstance(tree.body[-1], ast.Expr):
            trailing = ast.Expression(tree.body.pop(-1).value)
        exec(compile(tree, "<script>", "exec"), scope)
        if trailing is not None:
            value = eval(compile(trailing, "<script>", "eval"), scope)
    except SystemExit as exc:
        if exc.code is None:
            exit_code = 0
        elif isinstance(exc.code, int):
            exit_code = exc.code
        else:
            stderr_buf.write(str(exc.code) + "\n")
            exit_code = 1
    except SyntaxError as exc:
        err_kind = "syntax"
        err_msg = "%s (line %s)" % (exc.msg, exc.lineno)
    except BaseException as exc:
        traceback.print_exc(file=stderr_buf)
        err_msg = "%s: %s" % (type(exc).__name__, exc)
    finally:
        # Exit-path guarantee: streams, argv and cwd are always restored.
        sys.argv = old_argv
        sys.stdout = old_stdout
        sys.stderr = old_stderr
        os.chdir(old_cwd)

    event = {
        "type": "result",
        "id": cmd_id,
        "ok": err_kind is None and err_msg is None and not exit_code,
        "stdout": stdout_buf.getvalue(),
        "stderr": stderr_buf.getvalue(),
        "installed": installed,
        "files": collect_output_files(),
    }
    if exit_code is not None:
        event["exit"] = exit_code
    if err_kind:
        event["errKind"] = err_kind
    if err_msg:
        event["errMessage"] = err_msg
    if event["ok"] and value is not None:
        try:
            json.dumps(value, allow_nan=False)
            event["value"] = value
        except (TypeError, ValueError):
            event["valueText"] = repr(value)
    send(event)


def main():
    os.makedirs(WORKDIR, exist_ok=True)
    send({"type": "ready"})
    for line in sys.stdin:
        line = line.strip()
        if not line:
            continue
        try:
            cmd = json.loads(line)
        except ValueError:
            continue
        op = cmd.get("op")
        if op == "exec":
            try:
                run(cmd)
            except BaseException as exc:
                send({"type": "result", "id": cmd.get("id", ""), "ok": False,
                      "errMessage": "harness failure: %s" % exc,
                      "stdout": "", "stderr": ""})
        elif op == "shutdown":
            return


main()
`
