package wgsl

// prelude implements the non-native IR builtins. Every function here has a
// matching implementation in package cpu; keep the two in sync.
const prelude = `
fn sdf_merge(d1: f32, d2: f32) -> f32 {
    return min(d1, d2);
}

fn sdf_mergeSmooth(d1: f32, d2: f32, k: f32) -> f32 {
    let h = clamp(0.5 + 0.5 * (d2 - d1) / k, 0.0, 1.0);
    return mix(d2, d1, h) - k * h * (1.0 - h);
}

fn sdf_subtract(d1: f32, d2: f32) -> f32 {
    return max(d1, -d2);
}

fn sdf_subtractSmooth(d1: f32, d2: f32, k: f32) -> f32 {
    let h = clamp(0.5 - 0.5 * (d2 + d1) / k, 0.0, 1.0);
    return mix(d2, -d1, h) + k * h * (1.0 - h);
}

fn sdf_intersect(d1: f32, d2: f32) -> f32 {
    return max(d1, d2);
}

fn sdf_intersectSmooth(d1: f32, d2: f32, k: f32) -> f32 {
    let h = clamp(0.5 - 0.5 * (d2 - d1) / k, 0.0, 1.0);
    return mix(d2, d1, h) + k * h * (1.0 - h);
}

fn sdf_fillMask(d: f32) -> f32 {
    return clamp(-d, 0.0, 1.0);
}

fn sdf_borderMask(d: f32, w: f32) -> f32 {
    return clamp(d + w, 0.0, 1.0) - clamp(d, 0.0, 1.0);
}

fn sdf_translate(p: vec2<f32>, t: vec2<f32>) -> vec2<f32> {
    return p - t;
}

fn sdf_rotateCW(p: vec2<f32>, a: f32) -> vec2<f32> {
    let ca = cos(a);
    let sa = sin(a);
    return vec2<f32>(p.x * ca + p.y * sa, p.y * ca - p.x * sa);
}

fn sdf_rotateCCW(p: vec2<f32>, a: f32) -> vec2<f32> {
    let ca = cos(a);
    let sa = sin(a);
    return vec2<f32>(p.x * ca - p.y * sa, p.x * sa + p.y * ca);
}

fn sdf_sdBox(p: vec2<f32>, b: vec2<f32>) -> f32 {
    let d = abs(p) - b;
    return length(max(d, vec2<f32>(0.0))) + min(max(d.x, d.y), 0.0);
}

fn sdf_sdSegment(p: vec2<f32>, a: vec2<f32>, b: vec2<f32>) -> f32 {
    let pa = p - a;
    let ba = b - a;
    let h = clamp(dot(pa, ba) / max(dot(ba, ba), 0.0000001), 0.0, 1.0);
    return length(pa - ba * h);
}

fn sdf_sdTriangle(p: vec2<f32>, p0: vec2<f32>, p1: vec2<f32>, p2: vec2<f32>) -> f32 {
    let e0 = p1 - p0;
    let e1 = p2 - p1;
    let e2 = p0 - p2;
    let v0 = p - p0;
    let v1 = p - p1;
    let v2 = p - p2;
    let pq0 = v0 - e0 * clamp(dot(v0, e0) / max(dot(e0, e0), 0.0000001), 0.0, 1.0);
    let pq1 = v1 - e1 * clamp(dot(v1, e1) / max(dot(e1, e1), 0.0000001), 0.0, 1.0);
    let pq2 = v2 - e2 * clamp(dot(v2, e2) / max(dot(e2, e2), 0.0000001), 0.0, 1.0);
    let s = sign(e0.x * e2.y - e0.y * e2.x);
    let d = min(min(vec2<f32>(dot(pq0, pq0), s * (v0.x * e0.y - v0.y * e0.x)),
                    vec2<f32>(dot(pq1, pq1), s * (v1.x * e1.y - v1.y * e1.x))),
                    vec2<f32>(dot(pq2, pq2), s * (v2.x * e2.y - v2.y * e2.x)));
    return -sqrt(d.x) * sign(d.y);
}

fn sdf_gradientLinear(p: vec2<f32>, a: vec2<f32>, b: vec2<f32>, ca: vec4<f32>, cb: vec4<f32>) -> vec4<f32> {
    let ba = b - a;
    let h = clamp(dot(p - a, ba) / max(dot(ba, ba), 0.0000001), 0.0, 1.0);
    return mix(ca, cb, h);
}

fn sdf_profileSegment(x: f32, s: vec4<f32>, c: vec4<f32>, e: vec4<f32>) -> f32 {
    let sp = max(e.x - s.x, 0.00001);
    let tt = clamp((x - s.x) / sp, 0.0, 1.0);
    let lin = mix(s.y, e.y, tt);
    if (s.z == 1.0) {
        let r = sp * 0.5;
        let xm = (x - s.x) - r;
        return lin + sqrt(max(r * r - xm * xm, 0.0));
    }
    if (s.z == 2.0) {
        let qa = s.x - 2.0 * c.x + e.x;
        let qb = 2.0 * (c.x - s.x);
        let qc = s.x - x;
        var bt = tt;
        if (abs(qa) > 0.000001) {
            let q = sqrt(max(qb * qb - 4.0 * qa * qc, 0.0));
            let t1 = (-qb + q) / (2.0 * qa);
            let t2 = (-qb - q) / (2.0 * qa);
            bt = select(t2, t1, t1 >= 0.0 && t1 <= 1.0);
        } else if (abs(qb) > 0.000001) {
            bt = -qc / qb;
        }
        bt = clamp(bt, 0.0, 1.0);
        let u = 1.0 - bt;
        return u * u * s.y + 2.0 * u * bt * c.y + bt * bt * e.y;
    }
    if (s.z == 3.0) {
        return mix(s.y, e.y, smoothstep(0.0, 1.0, tt));
    }
    return lin;
}
`
